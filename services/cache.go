package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend_panelhub/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheTTLShort время жизни сводки главной панели
const CacheTTLShort = 5 * time.Minute

const reportCachePrefix = "panelhub:reports:"

// ErrCacheMiss значение отсутствует в кэше
var ErrCacheMiss = errors.New("ключ не найден в кэше")

// CacheService кэширует сводку главной панели в Redis. Без Redis все методы
// работают как промах кэша
type CacheService struct {
	redis *redis.Client
	log   *zap.Logger
}

// NewCacheService создает новый экземпляр CacheService. redisClient может быть nil
func NewCacheService(redisClient *redis.Client, log *zap.Logger) *CacheService {
	return &CacheService{redis: redisClient, log: logger.OrNop(log).Named("cache")}
}

// Enabled подключен ли Redis
func (cs *CacheService) Enabled() bool {
	return cs != nil && cs.redis != nil
}

// ReportKey ключ кэша отчета, parts уточняют параметры (дата, период)
func ReportKey(kind string, parts ...string) string {
	key := reportCachePrefix + kind
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// GetJSON читает значение и разбирает его в dest
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if !cs.Enabled() {
		return ErrCacheMiss
	}

	val, err := cs.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// SetJSON сериализует value и сохраняет его на ttl
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка сериализации значения для кэша: %w", err)
	}
	return cs.redis.Set(ctx, key, data, ttl).Err()
}

// Remember возвращает значение из кэша или вычисляет его через load и сохраняет.
// Ошибки Redis не мешают ответу, значение просто вычисляется заново
func Remember[T any](ctx context.Context, cs *CacheService, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	err := cs.GetJSON(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		cs.log.Warn("Ошибка чтения кэша", zap.String("key", key), zap.Error(err))
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := cs.SetJSON(ctx, key, value, ttl); err != nil {
		cs.log.Warn("Ошибка записи в кэш", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// InvalidateReports удаляет все закэшированные отчеты
func (cs *CacheService) InvalidateReports(ctx context.Context) error {
	if !cs.Enabled() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := cs.redis.Scan(ctx, cursor, reportCachePrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("ошибка поиска ключей кэша: %w", err)
		}
		if len(keys) > 0 {
			if err := cs.redis.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("ошибка удаления ключей кэша: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
