// Package funnel derives an end-user's conversion stage from their
// verified postback history. Evaluation is a pure fold: replaying the
// same history always yields the same outcome, in any event order.
package funnel

import (
	"github.com/meep1w/pocket/internal/domain"
)

// Outcome is the derived funnel state for one user
type Outcome struct {
	Step          domain.UserStep
	DepositTotal  int64
	AccessGranted bool
	VIPEligible   bool
}

// Evaluate folds a user's verified event history plus tenant thresholds
// into a funnel step and eligibility flags. The current step is an
// input so the result never downgrades; unverified events are ignored
// even if present in the slice.
func Evaluate(cfg *domain.TenantConfig, current domain.UserStep, events []domain.Postback) Outcome {
	var (
		registered   bool
		hasDeposit   bool
		depositTotal int64
	)

	for _, e := range events {
		if !e.TokenOK {
			continue
		}
		switch e.Event {
		case domain.EventRegistration:
			registered = true
		case domain.EventDeposit:
			hasDeposit = true
			depositTotal += e.Sum
		}
	}

	step := domain.StepNew
	if registered {
		step = domain.StepRegistered
	}
	if hasDeposit {
		step = domain.MaxStep(step, domain.StepAskedDeposit)
		if depositTotal >= cfg.MinDeposit {
			step = domain.StepDeposited
		}
	}
	// when no deposit is required, registration alone unlocks access;
	// the deposited step doubles as "unlocked"
	if !cfg.RequireDeposit && registered {
		step = domain.StepDeposited
	}

	step = domain.MaxStep(current, step)

	return Outcome{
		Step:          step,
		DepositTotal:  depositTotal,
		AccessGranted: step == domain.StepDeposited,
		VIPEligible:   cfg.VIPThreshold > 0 && depositTotal >= cfg.VIPThreshold,
	}
}
