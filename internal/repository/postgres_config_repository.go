package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meep1w/pocket/internal/domain"
)

// PostgresTenantConfigRepository implements TenantConfigRepository
// using PostgreSQL
type PostgresTenantConfigRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantConfigRepository creates a new PostgresTenantConfigRepository
func NewPostgresTenantConfigRepository(pool *pgxpool.Pool) *PostgresTenantConfigRepository {
	return &PostgresTenantConfigRepository{pool: pool}
}

// Get retrieves a tenant's config, (nil, nil) when never configured
func (r *PostgresTenantConfigRepository) Get(ctx context.Context, tenantID int64) (*domain.TenantConfig, error) {
	query := `
		SELECT tenant_id, require_deposit, min_deposit, require_subscription, vip_threshold
		FROM tenant_configs
		WHERE tenant_id = $1
	`
	cfg := &domain.TenantConfig{}
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&cfg.TenantID,
		&cfg.RequireDeposit,
		&cfg.MinDeposit,
		&cfg.RequireSubscription,
		&cfg.VIPThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// Upsert creates or replaces a tenant's config
func (r *PostgresTenantConfigRepository) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	query := `
		INSERT INTO tenant_configs (tenant_id, require_deposit, min_deposit, require_subscription, vip_threshold)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE
		SET require_deposit = EXCLUDED.require_deposit,
		    min_deposit = EXCLUDED.min_deposit,
		    require_subscription = EXCLUDED.require_subscription,
		    vip_threshold = EXCLUDED.vip_threshold
	`
	_, err := r.pool.Exec(ctx, query,
		cfg.TenantID,
		cfg.RequireDeposit,
		cfg.MinDeposit,
		cfg.RequireSubscription,
		cfg.VIPThreshold,
	)
	return err
}
