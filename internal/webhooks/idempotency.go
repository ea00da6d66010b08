package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skshopping/shop-backend/pkg/redis"
)

// IdempotencyGuard remembers webhook deliveries that were already processed.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// Seen reports whether deliveryID was already applied.
func (g *IdempotencyGuard) Seen(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	value, err := g.store.Get(ctx, g.store.IdempotencyKey(g.scope, deliveryID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("get idempotency key: %w", err)
	}
	return value != "", nil
}

// Mark records deliveryID as applied. Call it only after the state change
// has committed.
func (g *IdempotencyGuard) Mark(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	if _, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, deliveryID), "1", g.ttl); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}
