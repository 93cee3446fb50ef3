// Package users declares the repository contract for user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/apikit/internal/server/models"
)

// Repository defines persistence operations on user accounts. Lookups that
// match nothing return common.ErrorNotFound; a duplicate email on Create
// returns common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context, filter models.UserFilter) (int, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	SetPassword(ctx context.Context, id string, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
