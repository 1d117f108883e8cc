package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meep1w/pocket/internal/domain"
)

// PostgresTenantRepository implements TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantRepository creates a new PostgresTenantRepository
func NewPostgresTenantRepository(pool *pgxpool.Pool) *PostgresTenantRepository {
	return &PostgresTenantRepository{pool: pool}
}

const tenantColumns = `id, owner_id, bot_token, bot_username, status, postback_secret,
       COALESCE(support_url, '') as support_url, COALESCE(ref_link, '') as ref_link,
       COALESCE(deposit_link, '') as deposit_link, COALESCE(channel_url, '') as channel_url,
       COALESCE(lang_default, 'ru') as lang_default, created_at, updated_at, deleted_at`

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.BotToken,
		&t.BotUsername,
		&t.Status,
		&t.PostbackSecret,
		&t.SupportURL,
		&t.RefLink,
		&t.DepositLink,
		&t.ChannelURL,
		&t.LangDefault,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create persists a new tenant and assigns its ID
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (owner_id, bot_token, bot_username, status, postback_secret,
		                     support_url, ref_link, deposit_link, channel_url, lang_default,
		                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		tenant.OwnerID,
		tenant.BotToken,
		tenant.BotUsername,
		tenant.Status,
		tenant.PostbackSecret,
		nullStringOrValue(tenant.SupportURL),
		nullStringOrValue(tenant.RefLink),
		nullStringOrValue(tenant.DepositLink),
		nullStringOrValue(tenant.ChannelURL),
		tenant.LangDefault,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Scan(&tenant.ID)
}

// GetByID retrieves a tenant by ID, excluding soft-deleted ones
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tenants
		WHERE id = $1 AND status <> 'deleted'
	`, tenantColumns)

	tenant, err := scanTenant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

// ListByStatus retrieves all tenants with the given run-state
func (r *PostgresTenantRepository) ListByStatus(ctx context.Context, status domain.TenantStatus) ([]*domain.Tenant, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tenants
		WHERE status = $1
		ORDER BY id
	`, tenantColumns)

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := make([]*domain.Tenant, 0)
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// UpdateStatus transitions a tenant's run-state. Transitioning to
// deleted stamps deleted_at for the purge task.
func (r *PostgresTenantRepository) UpdateStatus(ctx context.Context, id int64, status domain.TenantStatus) error {
	query := `
		UPDATE tenants
		SET status = $2,
		    updated_at = $3,
		    deleted_at = CASE WHEN $2 = 'deleted' THEN $3 ELSE NULL END
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tenant %d not found", id)
	}
	return nil
}

// Update persists mutable tenant fields
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET bot_token = $2, bot_username = $3, postback_secret = $4,
		    support_url = $5, ref_link = $6, deposit_link = $7,
		    channel_url = $8, lang_default = $9, updated_at = $10
		WHERE id = $1 AND status <> 'deleted'
	`
	tenant.UpdatedAt = time.Now().UTC()
	result, err := r.pool.Exec(ctx, query,
		tenant.ID,
		tenant.BotToken,
		tenant.BotUsername,
		tenant.PostbackSecret,
		nullStringOrValue(tenant.SupportURL),
		nullStringOrValue(tenant.RefLink),
		nullStringOrValue(tenant.DepositLink),
		nullStringOrValue(tenant.ChannelURL),
		tenant.LangDefault,
		tenant.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tenant %d not found or deleted", tenant.ID)
	}
	return nil
}

// PurgeDeletedBefore physically removes long-deleted tenants and their
// dependent rows. Order matters: dependents first.
func (r *PostgresTenantRepository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const selectQuery = `SELECT id FROM tenants WHERE status = 'deleted' AND deleted_at < $1`
	rows, err := tx.Query(ctx, selectQuery, cutoff)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, tx.Commit(ctx)
	}

	for _, table := range []string{"postbacks", "users", "tenant_configs"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ANY($1)`, table), ids); err != nil {
			return 0, err
		}
	}
	result, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// nullStringOrValue returns nil for empty strings, otherwise the value
func nullStringOrValue(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
