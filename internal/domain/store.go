package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists detected opportunities and scheduler output.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, opps []Opportunity) (int64, error)
	InsertScheduled(ctx context.Context, runID string, trades []ScheduledTrade) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Opportunity, error)
}

// PoolStore persists resolved pools so restarts skip resolution.
type PoolStore interface {
	// InsertIfAbsent stores e unless an entry for (network, token) exists.
	InsertIfAbsent(ctx context.Context, e PoolCacheEntry) error
	Get(ctx context.Context, network, token string) (PoolCacheEntry, error)
	List(ctx context.Context) ([]PoolCacheEntry, error)
}
