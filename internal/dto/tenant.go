package dto

import (
	"time"

	"github.com/meep1w/pocket/internal/domain"
)

// CreateTenantRequest is the admin API payload for onboarding a tenant
type CreateTenantRequest struct {
	OwnerID        int64  `json:"owner_id" binding:"required"`
	BotToken       string `json:"bot_token" binding:"required"`
	BotUsername    string `json:"bot_username"`
	PostbackSecret string `json:"postback_secret"`
	SupportURL     string `json:"support_url"`
	RefLink        string `json:"ref_link"`
	DepositLink    string `json:"deposit_link"`
	ChannelURL     string `json:"channel_url"`
	LangDefault    string `json:"lang_default"`
}

// UpdateTenantRequest carries optional tenant profile changes; nil
// fields are left untouched
type UpdateTenantRequest struct {
	BotUsername    *string `json:"bot_username"`
	PostbackSecret *string `json:"postback_secret"`
	SupportURL     *string `json:"support_url"`
	RefLink        *string `json:"ref_link"`
	DepositLink    *string `json:"deposit_link"`
	ChannelURL     *string `json:"channel_url"`
	LangDefault    *string `json:"lang_default"`
}

// Validate checks that at least one field is provided
func (r *UpdateTenantRequest) Validate() (bool, string) {
	if r.BotUsername == nil && r.PostbackSecret == nil && r.SupportURL == nil &&
		r.RefLink == nil && r.DepositLink == nil && r.ChannelURL == nil && r.LangDefault == nil {
		return false, "at least one field must be provided"
	}
	return true, ""
}

// SetStatusRequest changes a tenant's desired run-state
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateConfigRequest carries optional funnel threshold changes
type UpdateConfigRequest struct {
	RequireDeposit      *bool  `json:"require_deposit"`
	MinDeposit          *int64 `json:"min_deposit"`
	RequireSubscription *bool  `json:"require_subscription"`
	VIPThreshold        *int64 `json:"vip_threshold"`
}

// Validate checks that at least one field is provided and thresholds
// are not negative
func (r *UpdateConfigRequest) Validate() (bool, string) {
	if r.RequireDeposit == nil && r.MinDeposit == nil && r.RequireSubscription == nil && r.VIPThreshold == nil {
		return false, "at least one field must be provided"
	}
	if r.MinDeposit != nil && *r.MinDeposit < 0 {
		return false, "min_deposit must not be negative"
	}
	if r.VIPThreshold != nil && *r.VIPThreshold < 0 {
		return false, "vip_threshold must not be negative"
	}
	return true, ""
}

// ResetFunnelRequest identifies the user history to erase
type ResetFunnelRequest struct {
	ClickID string `json:"click_id" binding:"required"`
	Events  string `json:"events"` // "registration", "deposit" or "" for both
}

// TenantResponse is the API view of a tenant; secrets are never echoed
type TenantResponse struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"owner_id"`
	BotUsername string `json:"bot_username"`
	Status      string `json:"status"`
	SupportURL  string `json:"support_url,omitempty"`
	RefLink     string `json:"ref_link,omitempty"`
	DepositLink string `json:"deposit_link,omitempty"`
	ChannelURL  string `json:"channel_url,omitempty"`
	LangDefault string `json:"lang_default,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ToTenantResponse converts domain.Tenant to TenantResponse
func ToTenantResponse(t *domain.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		BotUsername: t.BotUsername,
		Status:      string(t.Status),
		SupportURL:  t.SupportURL,
		RefLink:     t.RefLink,
		DepositLink: t.DepositLink,
		ChannelURL:  t.ChannelURL,
		LangDefault: t.LangDefault,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// ListTenantsResponse wraps a tenant listing
type ListTenantsResponse struct {
	Tenants    []TenantResponse `json:"tenants"`
	TotalCount int              `json:"total_count"`
}

// ConfigResponse is the API view of a tenant's funnel thresholds
type ConfigResponse struct {
	TenantID            int64 `json:"tenant_id"`
	RequireDeposit      bool  `json:"require_deposit"`
	MinDeposit          int64 `json:"min_deposit"`
	RequireSubscription bool  `json:"require_subscription"`
	VIPThreshold        int64 `json:"vip_threshold"`
}

// ToConfigResponse converts domain.TenantConfig to ConfigResponse
func ToConfigResponse(c *domain.TenantConfig) *ConfigResponse {
	return &ConfigResponse{
		TenantID:            c.TenantID,
		RequireDeposit:      c.RequireDeposit,
		MinDeposit:          c.MinDeposit,
		RequireSubscription: c.RequireSubscription,
		VIPThreshold:        c.VIPThreshold,
	}
}

// ResetFunnelResponse reports how much history a reset erased
type ResetFunnelResponse struct {
	DeletedEvents int64  `json:"deleted_events"`
	Step          string `json:"step"`
}
