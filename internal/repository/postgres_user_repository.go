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

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, tenant_id, tg_user_id, COALESCE(click_id, '') as click_id,
       COALESCE(trader_id, '') as trader_id, COALESCE(lang, '') as lang,
       step, access_notified, vip_notified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.TgUserID,
		&u.ClickID,
		&u.TraderID,
		&u.Lang,
		&u.Step,
		&u.AccessNotified,
		&u.VIPNotified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create persists a new user and assigns its ID
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (tenant_id, tg_user_id, click_id, trader_id, lang, step,
		                   access_notified, vip_notified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return r.pool.QueryRow(ctx, query,
		user.TenantID,
		user.TgUserID,
		nullStringOrValue(user.ClickID),
		nullStringOrValue(user.TraderID),
		nullStringOrValue(user.Lang),
		user.Step,
		user.AccessNotified,
		user.VIPNotified,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
}

func (r *PostgresUserRepository) getBy(ctx context.Context, where string, args ...interface{}) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s`, userColumns, where)
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetByTgID finds a user by their chat identity
func (r *PostgresUserRepository) GetByTgID(ctx context.Context, tenantID, tgUserID int64) (*domain.User, error) {
	return r.getBy(ctx, "tenant_id = $1 AND tg_user_id = $2", tenantID, tgUserID)
}

// GetByClickID finds a user by the stored affiliate click id
func (r *PostgresUserRepository) GetByClickID(ctx context.Context, tenantID int64, clickID string) (*domain.User, error) {
	if clickID == "" {
		return nil, nil
	}
	return r.getBy(ctx, "tenant_id = $1 AND click_id = $2", tenantID, clickID)
}

// GetByTraderID finds a user by the stored external trader id
func (r *PostgresUserRepository) GetByTraderID(ctx context.Context, tenantID int64, traderID string) (*domain.User, error) {
	if traderID == "" {
		return nil, nil
	}
	return r.getBy(ctx, "tenant_id = $1 AND trader_id = $2", tenantID, traderID)
}

// Update persists a user's step, flags and correlation keys
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET tg_user_id = $2, click_id = $3, trader_id = $4, lang = $5, step = $6,
		    access_notified = $7, vip_notified = $8, updated_at = $9
		WHERE id = $1
	`
	user.UpdatedAt = time.Now().UTC()
	result, err := r.pool.Exec(ctx, query,
		user.ID,
		user.TgUserID,
		nullStringOrValue(user.ClickID),
		nullStringOrValue(user.TraderID),
		nullStringOrValue(user.Lang),
		user.Step,
		user.AccessNotified,
		user.VIPNotified,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", user.ID)
	}
	return nil
}
