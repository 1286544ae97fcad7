package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend_panelhub/config"
	"backend_panelhub/models"
	"backend_panelhub/services"
	"backend_panelhub/testutils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServer роутер API поверх тестовой БД, часы остановлены на 10 марта 2026
type testServer struct {
	db       *gorm.DB
	router   *gin.Engine
	payments *services.PaymentService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutils.MustSetupTestDB(t)
	log := zap.NewNop()
	clock := services.FixedClock{Time: testutils.Date(2026, 3, 10)}
	vault := services.NewCredentialVault("api-test-secret")
	currencies := config.DefaultCurrencyTable()
	subscriptions := services.NewSubscriptionService(db, vault, currencies, clock, log)
	payments := services.NewPaymentService(db, clock, log)

	router := gin.New()
	RegisterRoutes(router.Group("/api"), Services{
		Catalog:       services.NewCatalogService(db, log),
		Panels:        services.NewPanelService(db, vault, clock, log),
		Subscriptions: subscriptions,
		Clients:       services.NewClientService(db, subscriptions, currencies, log),
		Projects:      services.NewProjectService(db, log),
		Payments:      payments,
		Cuts:          services.NewCutService(db, currencies, log),
		Reports:       services.NewReportService(db, clock, log),
	}, RouterOptions{Location: time.UTC, WarningDays: 3, PanelAlertDays: 5})

	return &testServer{db: db, router: router, payments: payments}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Changed bool   `json:"changed"`
	Count   int    `json:"count"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var body envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"не найдено", fmt.Errorf("панели: %w", services.ErrNotFound), http.StatusNotFound},
		{"панель заполнена", services.ErrPanelFull, http.StatusConflict},
		{"панель не работает", services.ErrPanelDown, http.StatusConflict},
		{"переход состояния", services.ErrInvalidTransition, http.StatusConflict},
		{"валидация", &services.ValidationError{Field: "name", Message: "обязательно"}, http.StatusBadRequest},
		{"прочее", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/", func(c *gin.Context) { respondError(c, tt.err) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.status, w.Code)

			body := decode[interface{}](t, w)
			assert.Equal(t, "error", body.Status)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body.Error, "connection refused")
			}
		})
	}
}

func TestCatalogAPI(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/services", map[string]interface{}{"name": "ChatGPT Plus", "base_price": "10", "is_active": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Service](t, w).Data
	assert.True(t, created.IsActive)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/services/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ChatGPT Plus", decode[models.Service](t, w).Data.Name)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/services/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/services/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/services", map[string]interface{}{"name": " "}).Code)

	w = s.do(t, http.MethodGet, "/api/services", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Service](t, w).Count)
}

func TestSubscriptionsAPI_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	service := testutils.CreateTestService(t, s.db, "ChatGPT Plus", "10")
	panel := testutils.CreateTestPanel(t, s.db, service.ID, 1, "20")
	client := testutils.CreateTestClient(t, s.db, "Ana", "MX")

	input := map[string]interface{}{
		"client_id":  client.ID,
		"service_id": service.ID,
		"panel_id":   panel.ID,
		"start_date": "2026-03-01T00:00:00Z",
		"email":      "ana@example.com",
		"password":   "secreto",
	}
	w := s.do(t, http.MethodPost, "/api/subscriptions", input)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode[models.Subscription](t, w).Data
	assert.True(t, testutils.Date(2026, 3, 31).Equal(sub.DueDate))
	assert.Equal(t, models.SubscriptionActive, sub.EffectiveState)

	// Единственное место панели уже занято
	w = s.do(t, http.MethodPost, "/api/subscriptions", input)
	assert.Equal(t, http.StatusConflict, w.Code)

	path := fmt.Sprintf("/api/subscriptions/%d", sub.ID)

	w = s.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cancelled := decode[models.Subscription](t, w)
	assert.True(t, cancelled.Changed)
	assert.Equal(t, models.SubscriptionCancelled, cancelled.Data.State)

	w = s.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.Subscription](t, w).Changed)

	w = s.do(t, http.MethodPost, path+"/renew", nil)
	require.Equal(t, http.StatusOK, w.Code)
	renewed := decode[models.Subscription](t, w).Data
	assert.Equal(t, models.SubscriptionActive, renewed.State)
	assert.True(t, testutils.Date(2026, 4, 9).Equal(renewed.DueDate))

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/panels/%d/available-slots?exclude_subscription_id=%d", panel.ID, sub.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w).Data["available_slots"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/subscriptions/999/renew", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/subscriptions?client_id=x", nil).Code)
}

func TestSubscriptionsAPI_ExpiringAndOverdue(t *testing.T) {
	s := newTestServer(t)
	service := testutils.CreateTestService(t, s.db, "Canva Pro", "5")
	client := testutils.CreateTestClient(t, s.db, "Luis", "CO")
	testutils.CreateTestSubscription(t, s.db, client.ID, service.ID, nil, models.SubscriptionActive, testutils.Date(2026, 2, 9))
	testutils.CreateTestSubscription(t, s.db, client.ID, service.ID, nil, models.SubscriptionActive, testutils.Date(2026, 1, 20))

	w := s.do(t, http.MethodGet, "/api/subscriptions/expiring", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Subscription](t, w).Count)

	w = s.do(t, http.MethodGet, "/api/subscriptions/overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Subscription](t, w).Count)

	w = s.do(t, http.MethodGet, "/api/subscriptions?state=vencida", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Subscription](t, w).Count)

	w = s.do(t, http.MethodPost, "/api/subscriptions/mark-expired", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w).Data["marked"])
}

func TestClientsAPI_CreateWithSubscriptions(t *testing.T) {
	s := newTestServer(t)
	service := testutils.CreateTestService(t, s.db, "ChatGPT Plus", "10")

	w := s.do(t, http.MethodPost, "/api/clients", map[string]interface{}{
		"client": map[string]interface{}{"name": "María López", "country": "mx"},
		"subscriptions": []map[string]interface{}{
			{"service_id": service.ID, "start_date": "2026-03-01T00:00:00Z"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decode[models.Client](t, w).Data
	assert.Equal(t, "MX", client.Country)
	assert.Len(t, client.Subscriptions, 1)

	w = s.do(t, http.MethodGet, "/api/clients?search=maría", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Client](t, w).Count)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/clients/%d/history", client.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]services.ClientEvent](t, w).Data)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, fmt.Sprintf("/api/clients/%d", client.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, fmt.Sprintf("/api/clients/%d", client.ID), nil).Code)
}

func TestPaymentsAPI_LocalCurrency(t *testing.T) {
	s := newTestServer(t)
	client := testutils.CreateTestClient(t, s.db, "Ana", "MX")

	w := s.do(t, http.MethodPost, "/api/payments", map[string]interface{}{
		"client_id":       client.ID,
		"original_amount": "1000",
		"currency":        "MXN",
		"exchange_rate":   "20",
		"method":          "oxxo",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[models.Payment](t, w).Data
	assert.True(t, decimal.RequireFromString("50").Equal(payment.Amount), payment.Amount.String())

	w = s.do(t, http.MethodGet, "/api/payments?from=2026-03-10&to=2026-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Payment](t, w).Count)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/payments?from=10-03-2026", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/payments", map[string]interface{}{
		"client_id": client.ID, "currency": "MXN", "original_amount": "100",
	}).Code)
}

func TestCutsAPI_PreviewAndCreate(t *testing.T) {
	s := newTestServer(t)
	client := testutils.CreateTestClient(t, s.db, "Ana", "MX")
	for _, local := range []string{"1000", "2000", "500"} {
		amount := decimal.RequireFromString(local)
		rate := decimal.NewFromInt(20)
		paidAt := testutils.Date(2026, 3, 3)
		_, err := s.payments.Create(services.PaymentInput{
			ClientID:       client.ID,
			OriginalAmount: &amount,
			Currency:       "MXN",
			ExchangeRate:   &rate,
			PaidAt:         &paidAt,
		})
		require.NoError(t, err)
	}

	req := map[string]interface{}{
		"country":            "MX",
		"week_start":         "2026-03-02",
		"commission_percent": "5",
		"p2p_rate":           "19.5",
		"usdt_received":      "170",
	}

	w := s.do(t, http.MethodPost, "/api/cuts/preview", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[services.CutPreview](t, w).Data
	assert.True(t, decimal.RequireFromString("3500").Equal(preview.Calculation.CollectedAmount))
	assert.True(t, decimal.RequireFromString("-0.51").Equal(preview.Calculation.Variance))

	w = s.do(t, http.MethodPost, "/api/cuts", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cut := decode[models.Cut](t, w).Data
	assert.Equal(t, 3, cut.PaymentCount)

	w = s.do(t, http.MethodGet, "/api/cuts?country=mx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Cut](t, w).Count)

	req["week_start"] = "02/03/2026"
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cuts/preview", req).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cuts/preview", map[string]interface{}{"week_start": "2026-03-02"}).Code)
}

func TestPanelsAPI_MarkDown(t *testing.T) {
	s := newTestServer(t)
	service := testutils.CreateTestService(t, s.db, "ChatGPT Plus", "10")
	panel := testutils.CreateTestPanel(t, s.db, service.ID, 5, "50")
	replacement := testutils.CreateTestPanel(t, s.db, service.ID, 5, "50")
	client := testutils.CreateTestClient(t, s.db, "Ana", "MX")
	testutils.CreateTestSubscription(t, s.db, client.ID, service.ID, &panel.ID, models.SubscriptionActive, testutils.Date(2026, 3, 1))

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/panels/%d/mark-down", panel.ID), map[string]interface{}{
		"replacement_panel_id": replacement.ID,
		"reason":               "cuenta bloqueada",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[services.MigrationResult](t, w).Data
	assert.Equal(t, 1, result.Moved)
	assert.Equal(t, models.PanelStateDown, result.Panel.State)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/panels/%d/events", panel.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]models.PanelEvent](t, w).Data)

	w = s.do(t, http.MethodGet, "/api/panels?state=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[[]models.Panel](t, w).Count)

	w = s.do(t, http.MethodGet, "/api/panels/occupancy", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/panels/%d/reactivate", panel.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.PanelStateActive, decode[models.Panel](t, w).Data.State)
}

func TestProjectsAPI_Goals(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/goals/2026-03", map[string]interface{}{"target_usd": "200"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2026-03", decode[models.Goal](t, w).Data.Month)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/goals/2026-13", map[string]interface{}{"target_usd": "200"}).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/goals/2026-03", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/goals/2026-03", nil).Code)

	w = s.do(t, http.MethodPost, "/api/projects", map[string]interface{}{"name": "Reventa Juan", "commission_percent": "30"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/projects", map[string]interface{}{"name": "X", "commission_percent": "150"}).Code)
}

func TestReportsAPI(t *testing.T) {
	s := newTestServer(t)
	service := testutils.CreateTestService(t, s.db, "ChatGPT Plus", "10")
	panel := testutils.CreateTestPanel(t, s.db, service.ID, 10, "300")
	client := testutils.CreateTestClient(t, s.db, "Ana", "MX")
	testutils.CreateTestSubscription(t, s.db, client.ID, service.ID, &panel.ID, models.SubscriptionActive, testutils.Date(2026, 3, 1))
	testutils.CreateTestPayment(t, s.db, client.ID, "70.01", testutils.Date(2026, 3, 4))

	w := s.do(t, http.MethodGet, "/api/reports/weekly?week_start=2026-03-02", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	weekly := decode[services.WeeklyReport](t, w).Data
	assert.True(t, decimal.RequireFromString("0.01").Equal(weekly.Summary.Profit), weekly.Summary.Profit.String())

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/reports/weekly", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/reports/monthly?month=marzo", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/reports/monthly?month=2026-03", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/reports/summary?from=2026-03-01&to=2026-03-10", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/reports/summary?from=2026-03-10&to=2026-03-01", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/reports/profitability", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/reports/goal?month=2026-03", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/dashboard", nil).Code)

	w = s.do(t, http.MethodGet, "/api/reports/export?type=weekly&week_start=2026-03-02&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "corte-semanal-2026-03-02.csv")
	assert.Contains(t, w.Body.String(), "Gasto prorrateado USD")

	w = s.do(t, http.MethodGet, "/api/reports/export?type=monthly&month=2026-03&format=pdf", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/reports/export?type=anual", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/reports/export?type=weekly&week_start=2026-03-02&format=doc", nil).Code)
}
