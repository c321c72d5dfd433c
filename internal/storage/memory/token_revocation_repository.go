package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// tokenRevocationInMemory хранит отозванные jti до истечения срока токена.
type tokenRevocationInMemory struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokenRevocationRepository создаёт in-memory реализацию TokenRevocationRepository.
func NewTokenRevocationRepository() domain.TokenRevocationRepository {
	return &tokenRevocationInMemory{
		revoked: make(map[string]time.Time),
	}
}

func (r *tokenRevocationInMemory) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.revoked[tokenID]; !ok {
		r.revoked[tokenID] = expiresAt
	}
	return nil
}

func (r *tokenRevocationInMemory) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.revoked[tokenID]
	return ok, nil
}

// DeleteExpired удаляет истёкшие записи; limit <= 0 снимает ограничение.
func (r *tokenRevocationInMemory) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, exp := range r.revoked {
		if limit > 0 && deleted >= limit {
			break
		}
		if !exp.After(before) {
			delete(r.revoked, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.TokenRevocationRepository = (*tokenRevocationInMemory)(nil)
