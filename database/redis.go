package database

import (
	"context"
	"fmt"
	"time"

	"backend_panelhub/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var Redis *redis.Client

// InitRedis инициализирует подключение к Redis
func InitRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.MaxConns,
		MinIdleConns: 2,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	})

	// Проверяем подключение
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	log.Info("✅ Успешно подключено к Redis", zap.String("addr", cfg.GetRedisAddr()))
	Redis = client
	return client, nil
}

// GetRedis возвращает экземпляр Redis клиента
func GetRedis() *redis.Client {
	return Redis
}

// RateLimitKey генерирует ключ счетчика запросов
func RateLimitKey(subject string) string {
	return fmt.Sprintf("panelhub:ratelimit:%s", subject)
}

// IncrementWindow увеличивает счетчик в окне и выставляет TTL при первом обращении
func IncrementWindow(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// Ключ без TTL остался после сбоя, восстанавливаем окно
		client.Expire(ctx, key, window)
		ttl = window
	}
	return count, ttl, nil
}
