package domain

import (
	"context"
	"time"

	"github.com/leadboard/leadboard/pkg/schema"
)

// CacheRepository defines caching operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Notifier delivers short-lived, dismissible user-facing notifications.
// Failures surfaced through it are never blocking.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// SearchClient is the radar-engine collaborator: a keyword search around a
// coordinate returning arbitrary flat records.
type SearchClient interface {
	Search(ctx context.Context, keyword string, lat, lng, radiusKm float64) ([]map[string]any, error)
}

// SyncClient is the CRM synchronization collaborator, invoked per lead
type SyncClient interface {
	Sync(ctx context.Context, lead schema.Lead) error
}

// BoardInvalidator resynchronizes a user's cached board view after a write
// that bypassed it. A refresh failure is never blocking for the write.
type BoardInvalidator interface {
	InvalidateBoard(ctx context.Context, userID string)
}
