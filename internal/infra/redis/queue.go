package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// Queue is a Redis-backed queue of ranges awaiting backfill. Members are
// stored in "start-end" format with the start key as score, so ranges pop
// in ascending order.
type Queue struct {
	rdb *redis.Client
}

// NewQueue creates a backfill queue on an existing client.
func NewQueue(c *Client) *Queue {
	return &Queue{rdb: c.rdb}
}

// Push enqueues a range for backfill. Pushing the same range twice is a
// no-op.
func (q *Queue) Push(ctx context.Context, r domain.Range) error {
	err := q.rdb.ZAdd(ctx, backfillQueue, redis.Z{
		Score:  float64(r.Start),
		Member: r.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue range %s: %w", r, err)
	}
	return nil
}

// Pop dequeues the lowest range. Returns ok=false when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (domain.Range, bool, error) {
	results, err := q.rdb.ZPopMin(ctx, backfillQueue, 1).Result()
	if err != nil {
		return domain.Range{}, false, fmt.Errorf("failed to pop range: %w", err)
	}
	if len(results) == 0 {
		return domain.Range{}, false, nil
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return domain.Range{}, false, fmt.Errorf("unexpected queue member type %T", results[0].Member)
	}
	r, err := domain.ParseRange(member)
	if err != nil {
		return domain.Range{}, false, err
	}
	return r, true, nil
}

// Len returns the number of ranges waiting in the queue.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, backfillQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}
