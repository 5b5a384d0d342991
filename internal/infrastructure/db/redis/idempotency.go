package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projexia/projexia/internal/core/domain"
)

const (
	idempotencyTTL = 24 * time.Hour
	// pendingTTL bounds how long a crashed request can hold a key.
	pendingTTL    = time.Minute
	pendingMarker = "pending"
)

// releaseScript deletes the key only while it still holds the reservation.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore maps Idempotency-Key headers to created resource ids.
// Key format: projexia:idem:<scope>:<key>
//
// A key moves from absent to "pending" (Reserve) to the resource id
// (Remember). Release returns a pending key to absent.
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, scope, k string) (string, bool, error) {
	rk := key("idem", scope, k)
	ok, err := s.client.SetNX(ctx, rk, pendingMarker, pendingTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return "", true, nil
	}

	id, err := s.client.Get(ctx, rk).Result()
	switch {
	case errors.Is(err, redis.Nil), err == nil && id == pendingMarker:
		return "", false, domain.ErrIdempotencyInProgress
	case err != nil:
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return id, false, nil
}

// Remember stores the id for idempotencyTTL, replacing the reservation.
func (s *IdempotencyStore) Remember(ctx context.Context, scope, k, resourceID string) error {
	if err := s.client.Set(ctx, key("idem", scope, k), resourceID, idempotencyTTL).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, scope, k string) error {
	if err := releaseScript.Run(ctx, s.client, []string{key("idem", scope, k)}, pendingMarker).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}
