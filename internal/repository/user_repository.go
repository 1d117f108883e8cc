package repository

import (
	"context"

	"github.com/meep1w/pocket/internal/domain"
)

// UserRepository stores end-users scoped to a tenant. Lookups return
// (nil, nil) on a miss.
type UserRepository interface {
	// Create persists a new user and assigns its ID
	Create(ctx context.Context, user *domain.User) error
	// GetByTgID finds a user by their chat identity
	GetByTgID(ctx context.Context, tenantID, tgUserID int64) (*domain.User, error)
	// GetByClickID finds a user by the stored affiliate click id
	GetByClickID(ctx context.Context, tenantID int64, clickID string) (*domain.User, error)
	// GetByTraderID finds a user by the stored external trader id
	GetByTraderID(ctx context.Context, tenantID int64, traderID string) (*domain.User, error)
	// Update persists a user's step, flags and correlation keys
	Update(ctx context.Context, user *domain.User) error
}
