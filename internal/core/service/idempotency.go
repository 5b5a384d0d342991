package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/api/metrics"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// claimKey reserves key before a create. It returns the id of a resource
// already created under key, or owned=true when the caller must finish with
// Remember or Release. A store outage degrades to a plain create.
func claimKey(ctx context.Context, store ports.IdempotencyStore, log zerolog.Logger, scope, key string) (replayID string, owned bool, err error) {
	id, reserved, err := store.Reserve(ctx, scope, key)
	switch {
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		metrics.IdempotencyTotal.WithLabelValues(scope, "in_progress").Inc()
		return "", false, err
	case err != nil:
		log.Warn().Err(err).Str("scope", scope).Msg("idempotency reserve failed, creating anyway")
		return "", false, nil
	case reserved:
		metrics.IdempotencyTotal.WithLabelValues(scope, "miss").Inc()
		return "", true, nil
	}
	metrics.IdempotencyTotal.WithLabelValues(scope, "hit").Inc()
	log.Info().Str("scope", scope).Str("resource_id", id).Msg("idempotent replay")
	return id, false, nil
}

func rememberKey(ctx context.Context, store ports.IdempotencyStore, log zerolog.Logger, scope, key, resourceID string) {
	if err := store.Remember(ctx, scope, key, resourceID); err != nil {
		log.Warn().Err(err).Str("scope", scope).Str("resource_id", resourceID).Msg("failed to store idempotency key")
	}
}

func releaseKey(ctx context.Context, store ports.IdempotencyStore, log zerolog.Logger, scope, key string) {
	if err := store.Release(context.WithoutCancel(ctx), scope, key); err != nil {
		log.Warn().Err(err).Str("scope", scope).Msg("failed to release idempotency key")
	}
}
