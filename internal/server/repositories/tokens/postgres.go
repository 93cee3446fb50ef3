// Package tokens provides a PostgreSQL-backed refresh token registry.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/dbx"
	"github.com/dmitrijs2005/apikit/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOutstanding inserts the token and scans back its generated id.
func (r *PostgresRepository) CreateOutstanding(ctx context.Context, token *models.OutstandingToken) error {
	query := `
		INSERT INTO outstanding_tokens (jti, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, token.JTI, token.UserID, token.Token, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetOutstandingByJTI returns the outstanding token row for jti.
func (r *PostgresRepository) GetOutstandingByJTI(ctx context.Context, jti string) (*models.OutstandingToken, error) {
	query := `
		SELECT id, jti, user_id, token, created_at, expires_at
		FROM outstanding_tokens
		WHERE jti = $1
	`
	t := &models.OutstandingToken{}
	var userID sql.NullString
	err := r.db.QueryRowContext(ctx, query, jti).
		Scan(&t.ID, &t.JTI, &userID, &t.Token, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.UserID = userID.String
	return t, nil
}

// Blacklist marks tokenID as revoked. It returns common.ErrTokenBlacklisted
// when the row already existed, including when a concurrent transaction
// inserted it first.
func (r *PostgresRepository) Blacklist(ctx context.Context, tokenID int64) error {
	query := `
		INSERT INTO blacklisted_tokens (token_id)
		VALUES ($1)
		ON CONFLICT (token_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrTokenBlacklisted
	}
	return nil
}

// IsBlacklisted reports whether the token with the given jti was revoked.
func (r *PostgresRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blacklisted_tokens b
			JOIN outstanding_tokens o ON o.id = b.token_id
			WHERE o.jti = $1
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes expired outstanding tokens. Blacklist rows go with
// them through ON DELETE CASCADE.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM outstanding_tokens
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
