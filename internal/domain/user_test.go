package domain

import "testing"

func TestMaxStep(t *testing.T) {
	tests := []struct {
		a, b, want UserStep
	}{
		{StepNew, StepRegistered, StepRegistered},
		{StepRegistered, StepNew, StepRegistered},
		{StepDeposited, StepAskedDeposit, StepDeposited},
		{StepAskedReg, StepAskedReg, StepAskedReg},
		{StepAskedDeposit, StepDeposited, StepDeposited},
	}

	for _, tt := range tests {
		if got := MaxStep(tt.a, tt.b); got != tt.want {
			t.Errorf("MaxStep(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUserStep_Rank(t *testing.T) {
	order := []UserStep{StepNew, StepAskedReg, StepRegistered, StepAskedDeposit, StepDeposited}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("Rank(%q) should be greater than Rank(%q)", order[i], order[i-1])
		}
	}
}

func TestUser_HasAccess(t *testing.T) {
	u := &User{Step: StepAskedDeposit}
	if u.HasAccess() {
		t.Error("asked_deposit should not have access")
	}
	u.Step = StepDeposited
	if !u.HasAccess() {
		t.Error("deposited should have access")
	}
}

func TestNewTenant_Validation(t *testing.T) {
	if _, err := NewTenant(0, "token", "bot"); err != ErrMissingOwner {
		t.Errorf("expected ErrMissingOwner, got %v", err)
	}
	if _, err := NewTenant(42, "", "bot"); err != ErrMissingBotToken {
		t.Errorf("expected ErrMissingBotToken, got %v", err)
	}

	tenant, err := NewTenant(42, "token", "bot")
	if err != nil {
		t.Fatalf("NewTenant() failed: %v", err)
	}
	if tenant.Status != TenantStatusActive {
		t.Errorf("Status = %q, want %q", tenant.Status, TenantStatusActive)
	}
}

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig(7)

	if cfg.TenantID != 7 {
		t.Errorf("TenantID = %d, want 7", cfg.TenantID)
	}
	if !cfg.RequireDeposit {
		t.Error("RequireDeposit should default to true")
	}
	if cfg.MinDeposit != DefaultMinDeposit {
		t.Errorf("MinDeposit = %d, want %d", cfg.MinDeposit, DefaultMinDeposit)
	}
	if cfg.VIPThreshold != DefaultVIPThreshold {
		t.Errorf("VIPThreshold = %d, want %d", cfg.VIPThreshold, DefaultVIPThreshold)
	}
	if cfg.RequireSubscription {
		t.Error("RequireSubscription should default to false")
	}
}
