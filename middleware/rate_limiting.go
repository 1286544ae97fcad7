package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"backend_panelhub/database"
	"backend_panelhub/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Requests     int                       // Количество запросов
	Window       time.Duration             // Временное окно
	KeyGenerator func(*gin.Context) string // Генератор ключей
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// UserKeyGenerator генерирует ключ на основе оператора
func UserKeyGenerator(c *gin.Context) string {
	userID := c.GetString("user_id")
	if userID == "" {
		return DefaultKeyGenerator(c)
	}
	return "user:" + userID
}

// RateLimit создает middleware для ограничения частоты запросов.
// Без Redis или при его ошибке запросы пропускаются
func RateLimit(client *redis.Client, config RateLimitConfig, log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log).Named("ratelimit")
	if config.KeyGenerator == nil {
		config.KeyGenerator = UserKeyGenerator
	}

	return func(c *gin.Context) {
		if client == nil || config.Requests <= 0 {
			c.Next()
			return
		}

		key := database.RateLimitKey(config.KeyGenerator(c))
		count, ttl, err := database.IncrementWindow(c.Request.Context(), client, key, config.Window)
		if err != nil {
			log.Warn("Redis недоступен, rate limiting пропущен", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining := config.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if int(count) > config.Requests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error":  "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per %v",
					config.Requests, config.Window),
				"retry_after": ttl.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
