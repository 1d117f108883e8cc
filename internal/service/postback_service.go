package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/internal/funnel"
	"github.com/meep1w/pocket/internal/lock"
	"github.com/meep1w/pocket/internal/notify"
	"github.com/meep1w/pocket/internal/repository"
	"github.com/meep1w/pocket/pkg/logger"
)

var (
	ErrInvalidEvent = errors.New("unknown event kind")
	ErrForbidden    = errors.New("postback token rejected")
)

// SecretMode selects how postback tokens are verified
type SecretMode string

const (
	// SecretModeTenant checks the token against each tenant's own secret
	SecretModeTenant SecretMode = "tenant"
	// SecretModeGlobal checks the token against one shared secret
	SecretModeGlobal SecretMode = "global"
)

// IngestInput is one inbound affiliate postback, already split out of
// the query string but not yet validated
type IngestInput struct {
	TenantID int64
	Event    string
	ClickID  string
	TraderID string
	Sum      string
	Token    string
	RawQuery string
}

// IngestResult reports what ingestion did with the event
type IngestResult struct {
	Duplicate    bool
	UserID       int64
	Step         domain.UserStep
	DepositTotal int64
}

// PostbackService defines the interface for postback ingestion and
// end-user access checks
type PostbackService interface {
	// Ingest validates, authenticates, dedups and applies one postback
	Ingest(ctx context.Context, in *IngestInput) (*IngestResult, error)
	// CheckAccess reports whether a Telegram user has unlocked the tenant's product
	CheckAccess(ctx context.Context, tenantID, tgUserID int64) (bool, domain.UserStep, error)
}

type postbackService struct {
	tenantRepo   repository.TenantRepository
	configRepo   repository.TenantConfigRepository
	userRepo     repository.UserRepository
	postbackRepo repository.PostbackRepository
	locker       lock.Locker
	notifier     notify.Notifier
	secretMode   SecretMode
	globalSecret string
}

// NewPostbackService creates a new PostbackService
func NewPostbackService(
	tenantRepo repository.TenantRepository,
	configRepo repository.TenantConfigRepository,
	userRepo repository.UserRepository,
	postbackRepo repository.PostbackRepository,
	locker lock.Locker,
	notifier notify.Notifier,
	secretMode SecretMode,
	globalSecret string,
) PostbackService {
	return &postbackService{
		tenantRepo:   tenantRepo,
		configRepo:   configRepo,
		userRepo:     userRepo,
		postbackRepo: postbackRepo,
		locker:       locker,
		notifier:     notifier,
		secretMode:   secretMode,
		globalSecret: globalSecret,
	}
}

func (s *postbackService) Ingest(ctx context.Context, in *IngestInput) (*IngestResult, error) {
	event := domain.NormalizeEvent(in.Event)
	if !event.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEvent, in.Event)
	}

	tenant, err := s.tenantRepo.GetByID(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	sum := domain.ParseSum(in.Sum)

	if !s.tokenValid(tenant, in.Token) {
		// keep the rejected event for audit, flagged so it never
		// feeds funnel computation
		rejected := &domain.Postback{
			TenantID:  tenant.ID,
			Event:     event,
			ClickID:   in.ClickID,
			TraderID:  in.TraderID,
			Sum:       sum,
			TokenOK:   false,
			RawQuery:  in.RawQuery,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.postbackRepo.Create(ctx, rejected); err != nil {
			logger.WithContext(ctx).Error("record rejected postback",
				zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		}
		countIngest(ctx, "rejected")
		return nil, ErrForbidden
	}

	// serialize concurrent postbacks for the same tenant and click so
	// the dedup check and the append cannot interleave
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("pb:%d:%s", tenant.ID, in.ClickID))
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := s.postbackRepo.ExistsVerified(ctx, tenant.ID, event, in.ClickID, sum)
	if err != nil {
		return nil, err
	}
	if exists {
		countIngest(ctx, "duplicate")
		return &IngestResult{Duplicate: true}, nil
	}

	pb := &domain.Postback{
		TenantID:  tenant.ID,
		Event:     event,
		ClickID:   in.ClickID,
		TraderID:  in.TraderID,
		Sum:       sum,
		TokenOK:   true,
		RawQuery:  in.RawQuery,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.postbackRepo.Create(ctx, pb); err != nil {
		return nil, err
	}

	user, err := s.resolveUser(ctx, tenant.ID, in.ClickID, in.TraderID, tenant.LangDefault)
	if err != nil {
		return nil, err
	}
	if in.ClickID != "" && user.ClickID == "" {
		user.ClickID = in.ClickID
	}

	cfg, err := s.loadConfig(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.postbackRepo.ListVerified(ctx, tenant.ID, user.ClickID, user.TraderID)
	if err != nil {
		return nil, err
	}

	outcome := funnel.Evaluate(cfg, user.Step, history)

	changed := outcome.Step != user.Step
	accessEvent := outcome.AccessGranted && !user.AccessNotified
	vipEvent := outcome.VIPEligible && !user.VIPNotified

	user.Step = outcome.Step
	if in.TraderID != "" && user.TraderID == "" {
		user.TraderID = in.TraderID
	}
	if accessEvent {
		user.AccessNotified = true
	}
	if vipEvent {
		user.VIPNotified = true
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if changed || accessEvent || vipEvent {
		s.notifier.StateChanged(ctx, notify.StateChange{
			TenantID:      tenant.ID,
			UserID:        user.ID,
			TgUserID:      user.TgUserID,
			Step:          outcome.Step,
			AccessGranted: accessEvent,
			VIPEligible:   vipEvent,
			DepositTotal:  outcome.DepositTotal,
			OccurredAt:    time.Now().UTC(),
		})
	}

	countIngest(ctx, "applied")
	return &IngestResult{
		UserID:       user.ID,
		Step:         outcome.Step,
		DepositTotal: outcome.DepositTotal,
	}, nil
}

func (s *postbackService) CheckAccess(ctx context.Context, tenantID, tgUserID int64) (bool, domain.UserStep, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return false, "", err
	}
	if tenant == nil {
		return false, "", ErrTenantNotFound
	}

	user, err := s.userRepo.GetByTgID(ctx, tenantID, tgUserID)
	if err != nil {
		return false, "", err
	}
	if user == nil {
		return false, domain.StepNew, nil
	}
	return user.HasAccess(), user.Step, nil
}

// tokenValid compares the presented token in constant time against the
// tenant's secret, or the shared secret in global mode. A tenant with
// no secret configured in tenant mode rejects everything.
func (s *postbackService) tokenValid(tenant *domain.Tenant, token string) bool {
	var secret string
	switch s.secretMode {
	case SecretModeGlobal:
		secret = s.globalSecret
	default:
		secret = tenant.PostbackSecret
	}
	if secret == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}

// resolveUser finds the user a postback belongs to, in precedence
// order: numeric click_id as tg_user_id, then click_id, then
// trader_id. Unmatched events create a new user so early deposits are
// not lost; a numeric click_id becomes that user's tg_user_id so the
// miniapp can find them once they open the bot.
func (s *postbackService) resolveUser(ctx context.Context, tenantID int64, clickID, traderID, lang string) (*domain.User, error) {
	var tgUserID *int64
	if tgID, err := strconv.ParseInt(clickID, 10, 64); err == nil && tgID > 0 {
		user, err := s.userRepo.GetByTgID(ctx, tenantID, tgID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
		tgUserID = &tgID
	}

	user, err := s.userRepo.GetByClickID(ctx, tenantID, clickID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.TgUserID == nil {
			user.TgUserID = tgUserID
		}
		return user, nil
	}

	user, err = s.userRepo.GetByTraderID(ctx, tenantID, traderID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	now := time.Now().UTC()
	user = &domain.User{
		TenantID:  tenantID,
		TgUserID:  tgUserID,
		ClickID:   clickID,
		TraderID:  traderID,
		Lang:      lang,
		Step:      domain.StepNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *postbackService) loadConfig(ctx context.Context, tenantID int64) (*domain.TenantConfig, error) {
	cfg, err := s.configRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = domain.DefaultTenantConfig(tenantID)
	}
	return cfg, nil
}
