package repository

import (
	"context"
	"time"

	"github.com/meep1w/pocket/internal/domain"
)

// TenantRepository is the authoritative record of tenant identity and
// desired run-state. Implementations return (nil, nil) when a tenant
// does not exist.
type TenantRepository interface {
	// Create persists a new tenant and assigns its ID
	Create(ctx context.Context, tenant *domain.Tenant) error
	// GetByID retrieves a tenant by ID, including paused ones but not
	// soft-deleted ones
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	// ListByStatus retrieves all tenants with the given run-state
	ListByStatus(ctx context.Context, status domain.TenantStatus) ([]*domain.Tenant, error)
	// UpdateStatus transitions a tenant's run-state
	UpdateStatus(ctx context.Context, id int64, status domain.TenantStatus) error
	// Update persists mutable tenant fields
	Update(ctx context.Context, tenant *domain.Tenant) error
	// PurgeDeletedBefore physically removes tenants soft-deleted before
	// the cutoff, together with their dependent rows. Returns the number
	// of tenants purged.
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TenantConfigRepository stores per-tenant funnel thresholds
type TenantConfigRepository interface {
	// Get retrieves a tenant's config, (nil, nil) when never configured
	Get(ctx context.Context, tenantID int64) (*domain.TenantConfig, error)
	// Upsert creates or replaces a tenant's config
	Upsert(ctx context.Context, cfg *domain.TenantConfig) error
}
