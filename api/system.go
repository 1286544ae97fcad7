package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SystemAPI открытые маршруты состояния сервиса
type SystemAPI struct {
	db      *gorm.DB
	redis   *redis.Client
	version string
}

// NewSystemAPI создает новый экземпляр SystemAPI. redis может быть nil
func NewSystemAPI(db *gorm.DB, redisClient *redis.Client, version string) *SystemAPI {
	return &SystemAPI{db: db, redis: redisClient, version: version}
}

// RegisterRoutes регистрирует /health и /version
func (sa *SystemAPI) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", sa.HealthCheck)
	router.GET("/version", sa.GetVersion)
}

// HealthCheck проверка работоспособности базы и Redis
func (sa *SystemAPI) HealthCheck(c *gin.Context) {
	code, status := http.StatusOK, "success"
	database := "connected"
	if sqlDB, err := sa.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		database = "unavailable"
		code, status = http.StatusServiceUnavailable, "error"
	}

	// Redis не обязателен, без него отключается только rate limiting
	cache := "disabled"
	if sa.redis != nil {
		cache = "connected"
		if err := sa.redis.Ping(c.Request.Context()).Err(); err != nil {
			cache = "unavailable"
		}
	}

	c.JSON(code, gin.H{
		"status": status,
		"data": gin.H{
			"database":  database,
			"redis":     cache,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// GetVersion возвращает версию API
func (sa *SystemAPI) GetVersion(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{
		"api_version": "v1",
		"version":     sa.version,
	})
}
