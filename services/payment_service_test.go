package services

import (
	"testing"

	"backend_panelhub/models"
	"backend_panelhub/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func TestPaymentService_LocalCurrencyConvertedOnce(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 5))
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")

	payment, err := env.payments.Create(PaymentInput{
		ClientID:       client.ID,
		OriginalAmount: decPtr("1000"),
		Currency:       "mxn",
		ExchangeRate:   decPtr("20"),
		Method:         "oxxo",
	})
	require.NoError(t, err)
	assertDecimal(t, "50.00", payment.Amount)
	assert.Equal(t, "MXN", payment.Currency)
	assert.True(t, date(2026, 3, 5).Equal(payment.PaidAt), "дата по умолчанию сегодня")

	edited, err := env.payments.Update(payment.ID, PaymentUpdate{Method: "oxxo", ExchangeRate: decPtr("25")})
	require.NoError(t, err)
	assertDecimal(t, "50.00", edited.Amount)
	require.NotNil(t, edited.ExchangeRate)
	assertDecimal(t, "25", *edited.ExchangeRate)
}

func TestPaymentService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 5))
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	other := testutils.CreateTestClient(t, env.db, "Luis", "CO")
	service := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	foreignSub := testutils.CreateTestSubscription(t, env.db, other.ID, service.ID, nil, models.SubscriptionActive, date(2026, 3, 1))

	tests := []struct {
		name  string
		input PaymentInput
	}{
		{"без клиента", PaymentInput{Amount: decPtr("10")}},
		{"нулевая сумма USD", PaymentInput{ClientID: client.ID, Amount: decPtr("0")}},
		{"локальная валюта без курса", PaymentInput{ClientID: client.ID, Currency: "MXN", OriginalAmount: decPtr("100")}},
		{"нулевой курс", PaymentInput{ClientID: client.ID, Currency: "MXN", OriginalAmount: decPtr("100"), ExchangeRate: decPtr("0")}},
		{"неверный код валюты", PaymentInput{ClientID: client.ID, Currency: "PESO", Amount: decPtr("10")}},
		{"подписка другого клиента", PaymentInput{ClientID: client.ID, Amount: decPtr("10"), SubscriptionID: &foreignSub.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.payments.Create(tt.input)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "ожидалась ошибка валидации: %v", err)
		})
	}

	_, err := env.payments.Create(PaymentInput{ClientID: 999, Amount: decPtr("10")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentService_UpdateRejectsRateOnUSD(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 5))
	client := testutils.CreateTestClient(t, env.db, "Ana", "EC")

	payment, err := env.payments.Create(PaymentInput{ClientID: client.ID, Amount: decPtr("10.005")})
	require.NoError(t, err)
	assertDecimal(t, "10.01", payment.Amount)

	_, err = env.payments.Update(payment.ID, PaymentUpdate{ExchangeRate: decPtr("1")})
	assert.True(t, IsValidationError(err))

	updated, err := env.payments.Update(payment.ID, PaymentUpdate{Method: "zelle", PaidAt: timePtr(date(2026, 3, 1)), ReceiptRef: "r-1"})
	require.NoError(t, err)
	assert.Equal(t, "zelle", updated.Method)
	assert.Equal(t, "r-1", updated.ReceiptRef)
	assert.True(t, date(2026, 3, 1).Equal(updated.PaidAt))
}

func TestPaymentService_ListFilters(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 31))
	ana := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	luis := testutils.CreateTestClient(t, env.db, "Luis", "CO")

	testutils.CreateTestPayment(t, env.db, ana.ID, "10", date(2026, 2, 28))
	march := testutils.CreateTestPayment(t, env.db, ana.ID, "20", date(2026, 3, 1))
	testutils.CreateTestPayment(t, env.db, luis.ID, "30", date(2026, 3, 15))

	byClient, err := env.payments.List(PaymentFilter{ClientID: ana.ID})
	require.NoError(t, err)
	assert.Len(t, byClient, 2)

	inMarch, err := env.payments.List(PaymentFilter{From: timePtr(date(2026, 3, 1)), To: timePtr(date(2026, 3, 31))})
	require.NoError(t, err)
	assert.Len(t, inMarch, 2)

	fromOnly, err := env.payments.List(PaymentFilter{ClientID: ana.ID, From: timePtr(date(2026, 3, 1))})
	require.NoError(t, err)
	require.Len(t, fromOnly, 1)
	assert.Equal(t, march.ID, fromOnly[0].ID)

	_, err = env.payments.List(PaymentFilter{From: timePtr(date(2026, 3, 10)), To: timePtr(date(2026, 3, 1))})
	assert.True(t, IsValidationError(err))
}

func TestPaymentService_DeleteLinkedToCut(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 5))
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	payment := testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2026, 3, 2))
	free := testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2026, 3, 2))

	cut := &models.Cut{Reference: "cut-1", Country: "MX", Currency: "MXN", WeekStart: date(2026, 3, 2)}
	require.NoError(t, env.db.Create(cut).Error)
	require.NoError(t, env.db.Model(payment).Update("cut_id", cut.ID).Error)

	assert.True(t, IsValidationError(env.payments.Delete(payment.ID)))
	require.NoError(t, env.payments.Delete(free.ID))
	assert.ErrorIs(t, env.payments.Delete(free.ID), ErrNotFound)
}

func TestPaymentService_UpdateLinkedToCutKeepsDate(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 5))
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	payment := testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2026, 3, 2))
	free := testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2026, 3, 2))

	cut := &models.Cut{Reference: "cut-1", Country: "MX", Currency: "MXN", WeekStart: date(2026, 3, 2)}
	require.NoError(t, env.db.Create(cut).Error)
	require.NoError(t, env.db.Model(payment).Update("cut_id", cut.ID).Error)

	_, err := env.payments.Update(payment.ID, PaymentUpdate{PaidAt: timePtr(date(2026, 3, 20))})
	assert.True(t, IsValidationError(err), "платеж ушел бы из недели корте")

	updated, err := env.payments.Update(payment.ID, PaymentUpdate{PaidAt: timePtr(date(2026, 3, 2)), Notes: "transferencia"})
	require.NoError(t, err)
	assert.Equal(t, "transferencia", updated.Notes)
	assert.True(t, date(2026, 3, 2).Equal(updated.PaidAt))

	moved, err := env.payments.Update(free.ID, PaymentUpdate{PaidAt: timePtr(date(2026, 3, 20))})
	require.NoError(t, err)
	assert.True(t, date(2026, 3, 20).Equal(moved.PaidAt))
}
