package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

type tokenRevocationRepository struct {
	db *sql.DB
}

// NewTokenRevocationRepository создаёт PostgreSQL-реализацию TokenRevocationRepository.
func NewTokenRevocationRepository(store *Store) domain.TokenRevocationRepository {
	return &tokenRevocationRepository{db: store.DB()}
}

// Revoke сохраняет jti; повторный отзыв того же токена ничего не меняет.
func (r *tokenRevocationRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING
	`, tokenID, expiresAt.UTC()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *tokenRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var revoked bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID,
	).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return revoked, nil
}

// DeleteExpired удаляет порцию истёкших записей, начиная с самых старых.
func (r *tokenRevocationRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM revoked_tokens
		WHERE token_id IN (
			SELECT token_id FROM revoked_tokens
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	return int(deleted), nil
}

var _ domain.TokenRevocationRepository = (*tokenRevocationRepository)(nil)
