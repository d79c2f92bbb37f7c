package redis

import (
	"context"
	"time"
)

// ClientInterface defines the interface for Redis operations used by the
// scene repository and the traffic query cache.
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error

	// List operations, used for scene event history
	RPush(ctx context.Context, key string, values ...interface{}) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	Close() error
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
