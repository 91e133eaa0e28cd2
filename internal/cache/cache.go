package cache

import (
	"context"
	"time"
)

const (
	KeyFinanceRevenue   = "counter:finance:revenue"
	KeyFinanceMaterials = "counter:finance:materials"
)

// Cache stores JSON-encodable values. A miss is (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type NoopCache struct{}

func (NoopCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
