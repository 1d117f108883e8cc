package service

import (
	"context"
	"errors"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/internal/dto"
	"github.com/meep1w/pocket/internal/funnel"
	"github.com/meep1w/pocket/internal/repository"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantDeleted  = errors.New("tenant is deleted")
	ErrInvalidStatus  = errors.New("invalid tenant status")
	ErrUserNotFound   = errors.New("user not found")
)

// TenantService defines the interface for tenant directory operations
type TenantService interface {
	// Create onboards a new tenant with a default funnel config
	Create(ctx context.Context, req *dto.CreateTenantRequest) (*dto.TenantResponse, error)
	// GetByID retrieves a tenant by ID, excluding deleted ones
	GetByID(ctx context.Context, id int64) (*dto.TenantResponse, error)
	// List retrieves tenants in the given run-state
	List(ctx context.Context, status domain.TenantStatus) (*dto.ListTenantsResponse, error)
	// Update changes tenant profile fields
	Update(ctx context.Context, id int64, req *dto.UpdateTenantRequest) (*dto.TenantResponse, error)
	// SetStatus changes the tenant's desired run-state
	SetStatus(ctx context.Context, id int64, status domain.TenantStatus) error
	// GetConfig fetches funnel thresholds, lazily creating defaults
	GetConfig(ctx context.Context, tenantID int64) (*dto.ConfigResponse, error)
	// UpdateConfig patches funnel thresholds
	UpdateConfig(ctx context.Context, tenantID int64, req *dto.UpdateConfigRequest) (*dto.ConfigResponse, error)
	// ResetUserFunnel erases a user's event history and resets their step
	ResetUserFunnel(ctx context.Context, tenantID int64, req *dto.ResetFunnelRequest) (*dto.ResetFunnelResponse, error)
}

type tenantService struct {
	tenantRepo   repository.TenantRepository
	configRepo   repository.TenantConfigRepository
	userRepo     repository.UserRepository
	postbackRepo repository.PostbackRepository
}

// NewTenantService creates a new TenantService
func NewTenantService(
	tenantRepo repository.TenantRepository,
	configRepo repository.TenantConfigRepository,
	userRepo repository.UserRepository,
	postbackRepo repository.PostbackRepository,
) TenantService {
	return &tenantService{
		tenantRepo:   tenantRepo,
		configRepo:   configRepo,
		userRepo:     userRepo,
		postbackRepo: postbackRepo,
	}
}

func (s *tenantService) Create(ctx context.Context, req *dto.CreateTenantRequest) (*dto.TenantResponse, error) {
	tenant, err := domain.NewTenant(req.OwnerID, req.BotToken, req.BotUsername)
	if err != nil {
		return nil, err
	}
	tenant.PostbackSecret = req.PostbackSecret
	tenant.SupportURL = req.SupportURL
	tenant.RefLink = req.RefLink
	tenant.DepositLink = req.DepositLink
	tenant.ChannelURL = req.ChannelURL
	if req.LangDefault != "" {
		tenant.LangDefault = req.LangDefault
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	if err := s.configRepo.Upsert(ctx, domain.DefaultTenantConfig(tenant.ID)); err != nil {
		return nil, err
	}

	return dto.ToTenantResponse(tenant), nil
}

func (s *tenantService) GetByID(ctx context.Context, id int64) (*dto.TenantResponse, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return dto.ToTenantResponse(tenant), nil
}

func (s *tenantService) List(ctx context.Context, status domain.TenantStatus) (*dto.ListTenantsResponse, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	tenants, err := s.tenantRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		responses = append(responses, *dto.ToTenantResponse(t))
	}
	return &dto.ListTenantsResponse{
		Tenants:    responses,
		TotalCount: len(responses),
	}, nil
}

func (s *tenantService) Update(ctx context.Context, id int64, req *dto.UpdateTenantRequest) (*dto.TenantResponse, error) {
	if valid, errMsg := req.Validate(); !valid {
		return nil, errors.New(errMsg)
	}

	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	if req.BotUsername != nil {
		tenant.BotUsername = *req.BotUsername
	}
	if req.PostbackSecret != nil {
		tenant.PostbackSecret = *req.PostbackSecret
	}
	if req.SupportURL != nil {
		tenant.SupportURL = *req.SupportURL
	}
	if req.RefLink != nil {
		tenant.RefLink = *req.RefLink
	}
	if req.DepositLink != nil {
		tenant.DepositLink = *req.DepositLink
	}
	if req.ChannelURL != nil {
		tenant.ChannelURL = *req.ChannelURL
	}
	if req.LangDefault != nil {
		tenant.LangDefault = *req.LangDefault
	}

	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return dto.ToTenantResponse(tenant), nil
}

func (s *tenantService) SetStatus(ctx context.Context, id int64, status domain.TenantStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return ErrTenantNotFound
	}

	return s.tenantRepo.UpdateStatus(ctx, id, status)
}

func (s *tenantService) GetConfig(ctx context.Context, tenantID int64) (*dto.ConfigResponse, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	cfg, err := s.loadOrCreateConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.ToConfigResponse(cfg), nil
}

func (s *tenantService) UpdateConfig(ctx context.Context, tenantID int64, req *dto.UpdateConfigRequest) (*dto.ConfigResponse, error) {
	if valid, errMsg := req.Validate(); !valid {
		return nil, errors.New(errMsg)
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	cfg, err := s.loadOrCreateConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if req.RequireDeposit != nil {
		cfg.RequireDeposit = *req.RequireDeposit
	}
	if req.MinDeposit != nil {
		cfg.MinDeposit = *req.MinDeposit
	}
	if req.RequireSubscription != nil {
		cfg.RequireSubscription = *req.RequireSubscription
	}
	if req.VIPThreshold != nil {
		cfg.VIPThreshold = *req.VIPThreshold
	}

	if err := s.configRepo.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	return dto.ToConfigResponse(cfg), nil
}

func (s *tenantService) ResetUserFunnel(ctx context.Context, tenantID int64, req *dto.ResetFunnelRequest) (*dto.ResetFunnelResponse, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	user, err := s.userRepo.GetByClickID(ctx, tenantID, req.ClickID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	var kinds []domain.EventKind
	switch req.Events {
	case "":
		kinds = []domain.EventKind{domain.EventRegistration, domain.EventDeposit}
	default:
		kind := domain.NormalizeEvent(req.Events)
		if !kind.Valid() {
			return nil, errors.New("unknown event kind")
		}
		kinds = []domain.EventKind{kind}
	}

	deleted, err := s.postbackRepo.DeleteByClickID(ctx, tenantID, req.ClickID, kinds)
	if err != nil {
		return nil, err
	}

	// recompute the step from whatever history survived the reset
	cfg, err := s.loadOrCreateConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	remaining, err := s.postbackRepo.ListVerified(ctx, tenantID, user.ClickID, user.TraderID)
	if err != nil {
		return nil, err
	}

	outcome := funnel.Evaluate(cfg, domain.StepNew, remaining)

	user.Step = outcome.Step
	user.AccessNotified = false
	user.VIPNotified = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return &dto.ResetFunnelResponse{
		DeletedEvents: deleted,
		Step:          string(outcome.Step),
	}, nil
}

func (s *tenantService) loadOrCreateConfig(ctx context.Context, tenantID int64) (*domain.TenantConfig, error) {
	cfg, err := s.configRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = domain.DefaultTenantConfig(tenantID)
		if err := s.configRepo.Upsert(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
