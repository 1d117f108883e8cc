package domain

import (
	"errors"
	"time"
)

// TenantStatus is the desired run-state of a tenant's bot worker
type TenantStatus string

const (
	TenantStatusActive  TenantStatus = "active"
	TenantStatusPaused  TenantStatus = "paused"
	TenantStatusDeleted TenantStatus = "deleted"
)

// Valid reports whether s is a known tenant status
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusPaused, TenantStatusDeleted:
		return true
	}
	return false
}

// Tenant is an independently configured bot instance run on behalf of
// an owner. Deleted tenants are soft-marked and purged later; their
// postback history stays referable until the purge.
type Tenant struct {
	ID             int64        `json:"id"`
	OwnerID        int64        `json:"owner_id"`
	BotToken       string       `json:"-"`
	BotUsername    string       `json:"bot_username"`
	Status         TenantStatus `json:"status"`
	PostbackSecret string       `json:"-"`
	SupportURL     string       `json:"support_url,omitempty"`
	RefLink        string       `json:"ref_link,omitempty"`
	DepositLink    string       `json:"deposit_link,omitempty"`
	ChannelURL     string       `json:"channel_url,omitempty"`
	LangDefault    string       `json:"lang_default,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
}

var (
	ErrMissingOwner    = errors.New("owner id is required")
	ErrMissingBotToken = errors.New("bot token is required")
)

// NewTenant creates an active tenant for owner onboarding
func NewTenant(ownerID int64, botToken, botUsername string) (*Tenant, error) {
	if ownerID == 0 {
		return nil, ErrMissingOwner
	}
	if botToken == "" {
		return nil, ErrMissingBotToken
	}

	now := time.Now().UTC()
	return &Tenant{
		OwnerID:     ownerID,
		BotToken:    botToken,
		BotUsername: botUsername,
		Status:      TenantStatusActive,
		LangDefault: "ru",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Default thresholds applied when a config record is lazily created
const (
	DefaultMinDeposit   = 50
	DefaultVIPThreshold = 500
)

// TenantConfig holds per-tenant funnel thresholds. Created lazily with
// defaults on first access.
type TenantConfig struct {
	TenantID            int64 `json:"tenant_id"`
	RequireDeposit      bool  `json:"require_deposit"`
	MinDeposit          int64 `json:"min_deposit"`
	RequireSubscription bool  `json:"require_subscription"`
	VIPThreshold        int64 `json:"vip_threshold"`
}

// DefaultTenantConfig returns the config applied to a tenant that has
// never been configured
func DefaultTenantConfig(tenantID int64) *TenantConfig {
	return &TenantConfig{
		TenantID:       tenantID,
		RequireDeposit: true,
		MinDeposit:     DefaultMinDeposit,
		VIPThreshold:   DefaultVIPThreshold,
	}
}
