package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes.
// Each token's latest quotes live at "<ns>:price:<token>", one field per
// venue key holding a protobuf-encoded observation.
type PriceCache struct {
	c   *Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. A positive
// ttl expires a token's hash when no venue has refreshed it in that time.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{c: c, ttl: ttl}
}

// SetLatest overwrites each observation's venue slot for its token. When a
// batch carries several observations for the same slot the newest wins.
func (pc *PriceCache) SetLatest(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	latest := make(map[string]map[string]domain.Observation)
	for _, o := range obs {
		slots, ok := latest[o.Token]
		if !ok {
			slots = make(map[string]domain.Observation)
			latest[o.Token] = slots
		}
		if prev, ok := slots[o.VenueKey()]; ok && prev.Timestamp > o.Timestamp {
			continue
		}
		slots[o.VenueKey()] = o
	}

	pipe := pc.c.rdb.Pipeline()
	for token, slots := range latest {
		fields := make(map[string]any, len(slots))
		for vk, o := range slots {
			data, err := EncodeObservation(o)
			if err != nil {
				return err
			}
			fields[vk] = data
		}
		key := pc.c.Key("price", token)
		pipe.HSet(ctx, key, fields)
		if pc.ttl > 0 {
			pipe.Expire(ctx, key, pc.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set latest prices: %w", err)
	}
	return nil
}

// Latest returns the cached quotes for token ordered by venue key.
// It returns domain.ErrNotFound when nothing is cached.
func (pc *PriceCache) Latest(ctx context.Context, token string) ([]domain.Observation, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.c.Key("price", token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get latest %s: %w", token, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.Observation, 0, len(vals))
	for vk, raw := range vals {
		o, err := DecodeObservation([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("redis: decode %s/%s: %w", token, vk, err)
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VenueKey() < out[j].VenueKey() })
	return out, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
