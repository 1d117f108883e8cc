package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meep1w/pocket/internal/domain"
)

// MemoryTenantRepository is an in-memory implementation of
// TenantRepository and TenantConfigRepository for tests
type MemoryTenantRepository struct {
	mu      sync.RWMutex
	nextID  int64
	tenants map[int64]*domain.Tenant
	configs map[int64]*domain.TenantConfig
}

// NewMemoryTenantRepository creates a new in-memory tenant store
func NewMemoryTenantRepository() *MemoryTenantRepository {
	return &MemoryTenantRepository{
		nextID:  1,
		tenants: make(map[int64]*domain.Tenant),
		configs: make(map[int64]*domain.TenantConfig),
	}
}

func copyTenant(t *domain.Tenant) *domain.Tenant {
	c := *t
	if t.DeletedAt != nil {
		d := *t.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

func (r *MemoryTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenant.ID = r.nextID
	r.nextID++
	r.tenants[tenant.ID] = copyTenant(tenant)
	return nil
}

func (r *MemoryTenantRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tenants[id]
	if !ok || t.Status == domain.TenantStatusDeleted {
		return nil, nil
	}
	return copyTenant(t), nil
}

func (r *MemoryTenantRepository) ListByStatus(ctx context.Context, status domain.TenantStatus) ([]*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Tenant, 0)
	for _, t := range r.tenants {
		if t.Status == status {
			out = append(out, copyTenant(t))
		}
	}
	return out, nil
}

func (r *MemoryTenantRepository) UpdateStatus(ctx context.Context, id int64, status domain.TenantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[id]
	if !ok {
		return fmt.Errorf("tenant %d not found", id)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	if status == domain.TenantStatusDeleted {
		now := time.Now().UTC()
		t.DeletedAt = &now
	} else {
		t.DeletedAt = nil
	}
	return nil
}

func (r *MemoryTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tenants[tenant.ID]
	if !ok || existing.Status == domain.TenantStatusDeleted {
		return fmt.Errorf("tenant %d not found or deleted", tenant.ID)
	}
	tenant.UpdatedAt = time.Now().UTC()
	tenant.Status = existing.Status
	r.tenants[tenant.ID] = copyTenant(tenant)
	return nil
}

func (r *MemoryTenantRepository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, t := range r.tenants {
		if t.Status == domain.TenantStatusDeleted && t.DeletedAt != nil && t.DeletedAt.Before(cutoff) {
			delete(r.tenants, id)
			delete(r.configs, id)
			purged++
		}
	}
	return purged, nil
}

func (r *MemoryTenantRepository) Get(ctx context.Context, tenantID int64) (*domain.TenantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[tenantID]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (r *MemoryTenantRepository) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *cfg
	r.configs[cfg.TenantID] = &c
	return nil
}

// MemoryUserRepository is an in-memory implementation of UserRepository
// for tests
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*domain.User
}

// NewMemoryUserRepository creates a new in-memory user store
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		nextID: 1,
		users:  make(map[int64]*domain.User),
	}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.TgUserID != nil {
		id := *u.TgUserID
		c.TgUserID = &id
	}
	return &c
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *MemoryUserRepository) GetByTgID(ctx context.Context, tenantID, tgUserID int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.TenantID == tenantID && u.TgUserID != nil && *u.TgUserID == tgUserID {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) GetByClickID(ctx context.Context, tenantID int64, clickID string) (*domain.User, error) {
	if clickID == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.TenantID == tenantID && u.ClickID == clickID {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) GetByTraderID(ctx context.Context, tenantID int64, traderID string) (*domain.User, error) {
	if traderID == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.TenantID == tenantID && u.TraderID == traderID {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %d not found", user.ID)
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = copyUser(user)
	return nil
}

// MemoryPostbackRepository is an in-memory implementation of
// PostbackRepository for tests
type MemoryPostbackRepository struct {
	mu     sync.RWMutex
	nextID int64
	events []domain.Postback
}

// NewMemoryPostbackRepository creates a new in-memory event ledger
func NewMemoryPostbackRepository() *MemoryPostbackRepository {
	return &MemoryPostbackRepository{nextID: 1}
}

func (r *MemoryPostbackRepository) Create(ctx context.Context, pb *domain.Postback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pb.ID = r.nextID
	r.nextID++
	r.events = append(r.events, *pb)
	return nil
}

func (r *MemoryPostbackRepository) ExistsVerified(ctx context.Context, tenantID int64, event domain.EventKind, clickID string, sum int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if e.TenantID == tenantID && e.Event == event && e.ClickID == clickID && e.Sum == sum && e.TokenOK {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryPostbackRepository) ListVerified(ctx context.Context, tenantID int64, clickID, traderID string) ([]domain.Postback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Postback, 0)
	for _, e := range r.events {
		if e.TenantID != tenantID || !e.TokenOK {
			continue
		}
		if (clickID != "" && e.ClickID == clickID) || (traderID != "" && e.TraderID == traderID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryPostbackRepository) DeleteByClickID(ctx context.Context, tenantID int64, clickID string, events []domain.EventKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make(map[domain.EventKind]struct{}, len(events))
	for _, e := range events {
		kinds[e] = struct{}{}
	}

	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		_, match := kinds[e.Event]
		if e.TenantID == tenantID && e.ClickID == clickID && match {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// Count returns the total number of ledger rows, verified or not
func (r *MemoryPostbackRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
