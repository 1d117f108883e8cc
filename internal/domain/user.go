package domain

import "time"

// UserStep is the discrete funnel stage of an end-user
type UserStep string

const (
	StepNew          UserStep = "new"
	StepAskedReg     UserStep = "asked_reg"
	StepRegistered   UserStep = "registered"
	StepAskedDeposit UserStep = "asked_deposit"
	StepDeposited    UserStep = "deposited"
)

// stepOrder ranks funnel stages; steps only ever move forward except
// for an explicit administrative reset
var stepOrder = map[UserStep]int{
	StepNew:          0,
	StepAskedReg:     1,
	StepRegistered:   2,
	StepAskedDeposit: 3,
	StepDeposited:    4,
}

// Rank returns the ordinal position of the step in the funnel
func (s UserStep) Rank() int {
	return stepOrder[s]
}

// MaxStep returns the further-along of two steps
func MaxStep(a, b UserStep) UserStep {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// User is an end-user of one tenant's bot, matched to postback events
// by tg_user_id, click_id or trader_id
type User struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenant_id"`
	TgUserID       *int64    `json:"tg_user_id,omitempty"`
	ClickID        string    `json:"click_id,omitempty"`
	TraderID       string    `json:"trader_id,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	Step           UserStep  `json:"step"`
	AccessNotified bool      `json:"access_notified"`
	VIPNotified    bool      `json:"vip_notified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasAccess reports whether the user reached the unlocked state
func (u *User) HasAccess() bool {
	return u.Step == StepDeposited
}
