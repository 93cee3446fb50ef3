// Package tokens declares the repository contract for the refresh token
// registry: every issued refresh token is recorded as outstanding, and
// revoked ones are blacklisted.
package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/apikit/internal/server/models"
)

// Repository defines operations on outstanding and blacklisted tokens.
type Repository interface {
	// CreateOutstanding records a freshly issued refresh token and fills in
	// its ID and CreatedAt.
	CreateOutstanding(ctx context.Context, token *models.OutstandingToken) error

	// GetOutstandingByJTI returns common.ErrorNotFound when the jti was never recorded.
	GetOutstandingByJTI(ctx context.Context, jti string) (*models.OutstandingToken, error)

	// Blacklist revokes an outstanding token. A token that is already
	// blacklisted yields common.ErrTokenBlacklisted.
	Blacklist(ctx context.Context, tokenID int64) error

	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes outstanding tokens (and their blacklist rows)
	// that expired before now and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
