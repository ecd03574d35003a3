package httpapi

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
	"github.com/tbourn/go-discussion-engine/internal/services"
)

// idempotencyStore adapts the repo idempotency helpers to both the vote
// handler's replay store and the middleware's lookup callback.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup returns the stored result, or nil when the key is unknown or expired.
func (s idempotencyStore) Lookup(ctx context.Context, userID, scopeID, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, scopeID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Save records the tally returned by the first execution. A concurrent twin
// that stored first wins.
func (s idempotencyStore) Save(ctx context.Context, userID, scopeID, key string, t services.Tally, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scopeID, key, t.Likes, t.Dislikes, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// exists is the middleware.IdempotencyLookup view of the store. Lookup
// failures count as a miss so the request is executed.
func (s idempotencyStore) exists(ctx context.Context, userID, scopeID, key string, now time.Time) (bool, error) {
	rec, err := s.Lookup(ctx, userID, scopeID, key, now)
	if err != nil || rec == nil {
		return false, nil
	}
	return true, nil
}
