package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// keyPrefix 所有視覺回應快取鍵的前綴
const keyPrefix = "vision:response:"

// Service Redis 緩存服務
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

// NewService 創建 Redis 緩存服務並測試連線
func NewService(ctx context.Context, cfg config.CacheConfig) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewServiceWithClient(client, cfg.TTL), nil
}

// NewServiceWithClient 使用既有的 Redis 客戶端
func NewServiceWithClient(client *redis.Client, ttl time.Duration) *Service {
	return &Service{client: client, ttl: ttl}
}

// Get 獲取緩存；鍵不存在時回傳 common.ErrCacheMiss
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	return data, nil
}

// Set 設置緩存
func (s *Service) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close 關閉連線
func (s *Service) Close() error {
	return s.client.Close()
}
