package cache

import (
	"context"
	"log"

	"github.com/fortuna/diamond/internal/normalize"
)

// StatusInvalidator drops a game's cached status whenever it is normalized
// again, so readers never see counts from an earlier run.
type StatusInvalidator struct {
	cache *RedisCache
}

// NewStatusInvalidator creates an invalidating observer.
func NewStatusInvalidator(rc *RedisCache) *StatusInvalidator {
	return &StatusInvalidator{cache: rc}
}

// OnGameOutcome deletes the game's status key.
func (s *StatusInvalidator) OnGameOutcome(ctx context.Context, o normalize.Outcome) {
	if err := s.cache.Delete(ctx, GameStatusKey(o.GamePK)); err != nil {
		log.Printf("[cache] invalidate game %d: %v", o.GamePK, err)
	}
}
