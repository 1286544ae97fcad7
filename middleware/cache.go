package middleware

import (
	"net/http"

	"backend_panelhub/logger"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvalidateReportCache сбрасывает кэш отчетов после успешного изменяющего запроса
func InvalidateReportCache(cache *services.CacheService, log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)

	return func(c *gin.Context) {
		c.Next()

		if !cache.Enabled() {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		if err := cache.InvalidateReports(c.Request.Context()); err != nil {
			log.Warn("Не удалось сбросить кэш отчетов", zap.Error(err))
		}
	}
}
