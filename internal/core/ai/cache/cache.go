// Package cache 保存視覺模型回應，以圖片內容為鍵。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"ingredient-detector/internal/infrastructure/config"
)

// Store 快取後端
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

var (
	_ Store = (*CacheManager)(nil)
	_ Store = (*Service)(nil)
)

// New 依設定建立快取；停用時回傳 nil
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Driver {
	case config.DriverRedis:
		return NewService(ctx, cfg)
	case config.DriverMemory, "":
		return NewManager(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// Key 生成快取鍵：供應商、模型與圖片的 SHA-256
func Key(provider, model string, image []byte) string {
	hash := sha256.Sum256(image)
	return fmt.Sprintf("%s:%s:%s", provider, model, hex.EncodeToString(hash[:]))
}
