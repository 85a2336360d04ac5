package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/gapscan"
)

// GapStore persists tracked gaps across scanner runs. Each gap lives under
// its own key with the range string as suffix; a sorted set indexed by gap
// start keeps listing ordered.
type GapStore struct {
	rdb *redis.Client
}

// NewGapStore creates a gap store on an existing client.
func NewGapStore(c *Client) *GapStore {
	return &GapStore{rdb: c.rdb}
}

// List returns all tracked gaps ordered by start key.
func (s *GapStore) List(ctx context.Context) ([]gapscan.TrackedGap, error) {
	members, err := s.rdb.ZRange(ctx, trackedGapsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked gaps: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = fmt.Sprintf(trackedGapKeyFn, m)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked gaps: %w", err)
	}

	gaps := make([]gapscan.TrackedGap, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a value key; drop the stale member.
			s.rdb.ZRem(ctx, trackedGapsKey, members[i])
			continue
		}
		var g gapscan.TrackedGap
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			return nil, fmt.Errorf("failed to decode tracked gap %s: %w", members[i], err)
		}
		gaps = append(gaps, g)
	}
	return gaps, nil
}

// Put stores or updates a tracked gap.
func (s *GapStore) Put(ctx context.Context, g gapscan.TrackedGap) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode tracked gap: %w", err)
	}

	member := g.Range().String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(trackedGapKeyFn, member), data, 0)
	pipe.ZAdd(ctx, trackedGapsKey, redis.Z{Score: float64(g.Start), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store tracked gap %s: %w", member, err)
	}
	return nil
}

// Delete removes a tracked gap once the range is filled.
func (s *GapStore) Delete(ctx context.Context, r domain.Range) error {
	member := r.String()
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, fmt.Sprintf(trackedGapKeyFn, member))
	pipe.ZRem(ctx, trackedGapsKey, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete tracked gap %s: %w", member, err)
	}
	return nil
}
