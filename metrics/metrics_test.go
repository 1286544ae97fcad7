package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend_panelhub/models"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry(), Config{ServiceName: "panelhub", Environment: "test"})
}

func TestGinMiddleware(t *testing.T) {
	m := newTestMetrics()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/panels/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/panels/1", "/panels/2", "/unknown"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/panels/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpLatency))
}

func TestObserveDigest(t *testing.T) {
	m := newTestMetrics()

	m.ObserveDigest(&services.Digest{}, nil)
	m.ObserveDigest(&services.Digest{
		Expiring:      []models.Subscription{{ID: 1}, {ID: 2}},
		Overdue:       []models.Subscription{{ID: 3}},
		MarkedExpired: 1,
	}, nil)
	m.ObserveDigest(nil, errors.New("db down"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.digestRuns.WithLabelValues("empty")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.digestRuns.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.digestRuns.WithLabelValues("failed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.digestItems.WithLabelValues("expiring")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.digestItems.WithLabelValues("overdue")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.digestItems.WithLabelValues("marked_expired")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveDigest(nil, nil) })
}

func TestHandler(t *testing.T) {
	m := New(Config{})
	m.digestRuns.WithLabelValues("sent").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `panelhub_digest_runs_total{env="unknown",result="sent",service="panelhub"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
