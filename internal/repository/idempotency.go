package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency keys outlive any reasonable client retry window but not the
// keyspace.
const idemTTL = 24 * time.Hour

// IdempotencyGuard deduplicates requests that carry a client-chosen key.
// Mining scripts retry on flaky connections; without this a retried award
// would mint WINGOs twice.
type IdempotencyGuard struct {
	redisClient *redis.Client
}

func NewIdempotencyGuard(rdb *redis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{redisClient: rdb}
}

// Reserve claims the key. A key that is already claimed fails with
// ErrDuplicateRequest and the caller must not write.
func (g *IdempotencyGuard) Reserve(ctx context.Context, key string) error {
	ok, err := g.redisClient.SetNX(ctx, "idem:"+key, 1, idemTTL).Result()
	if err != nil {
		return fmt.Errorf("idempotency reserve: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

// Release frees a reservation after a write that committed nothing, so the
// caller can retry with the same key.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) {
	if err := g.redisClient.Del(ctx, "idem:"+key).Err(); err != nil {
		slog.Error("idempotency: failed to release key", "key", key, "error", err)
	}
}
