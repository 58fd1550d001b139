package domain

import (
	"context"
	"time"
)

// PriceCache keeps the latest observation per (token, venue key).
type PriceCache interface {
	SetLatest(ctx context.Context, obs []Observation) error
	Latest(ctx context.Context, token string) ([]Observation, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub messaging.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channels.
const (
	ChannelPrices = "prices"
	ChannelArb    = "arb"
)
