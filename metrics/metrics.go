package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config параметры меток
type Config struct {
	ServiceName string
	Environment string
}

// Metrics метрики HTTP API и ежедневной сводки
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	digestRuns   *prometheus.CounterVec
	digestItems  *prometheus.GaugeVec
}

// New создает метрики в собственном реестре вместе с метриками рантайма Go и процесса
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(registry, cfg)
}

func newMetrics(registry *prometheus.Registry, cfg Config) *Metrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "panelhub"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "panelhub_http_requests_total",
				Help:        "Total HTTP requests by route and status.",
				ConstLabels: constLabels,
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "panelhub_http_request_duration_seconds",
				Help:        "HTTP request latency by route.",
				Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
				ConstLabels: constLabels,
			},
			[]string{"method", "route"},
		),
		digestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "panelhub_digest_runs_total",
				Help:        "Daily due-date digest runs by result.",
				ConstLabels: constLabels,
			},
			[]string{"result"}, // sent | empty | failed
		),
		digestItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "panelhub_digest_items",
				Help:        "Items reported by the last digest run.",
				ConstLabels: constLabels,
			},
			[]string{"kind"}, // expiring | overdue | panels | marked_expired
		),
	}

	registry.MustRegister(m.httpRequests, m.httpLatency, m.digestRuns, m.digestItems)
	return m
}

// Handler отдает метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware считает запросы и их длительность. Маршрут берется из
// шаблона gin, чтобы id в пути не размножали серии
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveDigest фиксирует итог запуска ежедневной сводки
func (m *Metrics) ObserveDigest(digest *services.Digest, err error) {
	if m == nil {
		return
	}

	switch {
	case err != nil || digest == nil:
		m.digestRuns.WithLabelValues("failed").Inc()
	case digest.IsEmpty() && digest.MarkedExpired == 0:
		m.digestRuns.WithLabelValues("empty").Inc()
	default:
		m.digestRuns.WithLabelValues("sent").Inc()
	}

	if digest == nil {
		return
	}
	m.digestItems.WithLabelValues("expiring").Set(float64(len(digest.Expiring)))
	m.digestItems.WithLabelValues("overdue").Set(float64(len(digest.Overdue)))
	m.digestItems.WithLabelValues("panels").Set(float64(len(digest.ExpiringPanels)))
	m.digestItems.WithLabelValues("marked_expired").Set(float64(digest.MarkedExpired))
}
