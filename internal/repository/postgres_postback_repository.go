package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meep1w/pocket/internal/domain"
)

// PostgresPostbackRepository implements PostbackRepository using
// PostgreSQL
type PostgresPostbackRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPostbackRepository creates a new PostgresPostbackRepository
func NewPostgresPostbackRepository(pool *pgxpool.Pool) *PostgresPostbackRepository {
	return &PostgresPostbackRepository{pool: pool}
}

// Create appends an event to the ledger
func (r *PostgresPostbackRepository) Create(ctx context.Context, pb *domain.Postback) error {
	query := `
		INSERT INTO postbacks (tenant_id, event, click_id, trader_id, sum, token_ok, raw_query, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	// click_id and trader_id are NOT NULL columns; absent keys are
	// stored as empty strings so the dedup index still applies
	return r.pool.QueryRow(ctx, query,
		pb.TenantID,
		pb.Event,
		pb.ClickID,
		pb.TraderID,
		pb.Sum,
		pb.TokenOK,
		pb.RawQuery,
		pb.CreatedAt,
	).Scan(&pb.ID)
}

// ExistsVerified reports whether a verified event with the same
// idempotency key is already recorded
func (r *PostgresPostbackRepository) ExistsVerified(ctx context.Context, tenantID int64, event domain.EventKind, clickID string, sum int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM postbacks
			WHERE tenant_id = $1 AND event = $2 AND click_id = $3 AND sum = $4 AND token_ok
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, tenantID, event, clickID, sum).Scan(&exists)
	return exists, err
}

// ListVerified returns all verified events matching a user's
// correlation keys, oldest first
func (r *PostgresPostbackRepository) ListVerified(ctx context.Context, tenantID int64, clickID, traderID string) ([]domain.Postback, error) {
	query := `
		SELECT id, tenant_id, event, click_id, trader_id, sum, token_ok,
		       raw_query, created_at
		FROM postbacks
		WHERE tenant_id = $1 AND token_ok
		  AND (($2 <> '' AND click_id = $2) OR ($3 <> '' AND trader_id = $3))
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, tenantID, clickID, traderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.Postback, 0)
	for rows.Next() {
		var pb domain.Postback
		err := rows.Scan(
			&pb.ID,
			&pb.TenantID,
			&pb.Event,
			&pb.ClickID,
			&pb.TraderID,
			&pb.Sum,
			&pb.TokenOK,
			&pb.RawQuery,
			&pb.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, pb)
	}
	return events, rows.Err()
}

// DeleteByClickID removes a user's events of the given kinds so the
// funnel can be walked again
func (r *PostgresPostbackRepository) DeleteByClickID(ctx context.Context, tenantID int64, clickID string, events []domain.EventKind) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, string(e))
	}

	query := `
		DELETE FROM postbacks
		WHERE tenant_id = $1 AND click_id = $2 AND event = ANY($3)
	`
	result, err := r.pool.Exec(ctx, query, tenantID, clickID, kinds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
