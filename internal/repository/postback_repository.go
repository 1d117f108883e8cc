package repository

import (
	"context"

	"github.com/meep1w/pocket/internal/domain"
)

// PostbackRepository is the append-only event ledger. Rows are never
// updated; deletion exists only for the administrative funnel reset.
type PostbackRepository interface {
	// Create appends an event to the ledger
	Create(ctx context.Context, pb *domain.Postback) error
	// ExistsVerified reports whether a verified event with the same
	// idempotency key (tenant, event, click_id, sum) is already recorded
	ExistsVerified(ctx context.Context, tenantID int64, event domain.EventKind, clickID string, sum int64) (bool, error)
	// ListVerified returns all verified events matching a user's
	// correlation keys, oldest first. Empty keys do not match.
	ListVerified(ctx context.Context, tenantID int64, clickID, traderID string) ([]domain.Postback, error)
	// DeleteByClickID removes a user's events of the given kinds so the
	// funnel can be walked again. Returns the number of rows removed.
	DeleteByClickID(ctx context.Context, tenantID int64, clickID string, events []domain.EventKind) (int64, error)
}
