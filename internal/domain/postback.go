package domain

import (
	"strconv"
	"strings"
	"time"
)

// EventKind is the normalized kind of an affiliate conversion event
type EventKind string

const (
	EventRegistration EventKind = "registration"
	EventDeposit      EventKind = "deposit"
)

// Valid reports whether k is a known event kind
func (k EventKind) Valid() bool {
	return k == EventRegistration || k == EventDeposit
}

// NormalizeEvent maps affiliate-network event aliases to a canonical
// kind. Unknown values pass through unchanged so they fail validation
// with the original spelling in the error.
func NormalizeEvent(raw string) EventKind {
	switch strings.ToLower(raw) {
	case "reg", "registration", "signup", "sign_up":
		return EventRegistration
	case "dep", "deposit", "payment":
		return EventDeposit
	}
	return EventKind(strings.ToLower(raw))
}

// ParseSum parses an affiliate-supplied amount: a decimal string,
// truncated to whole currency units, zero on anything unparseable
func ParseSum(raw string) int64 {
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// Postback is one inbound conversion event. Rows are append-only;
// unverified rows (TokenOK=false) are kept for audit but never feed
// funnel computation.
type Postback struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Event     EventKind `json:"event"`
	ClickID   string    `json:"click_id,omitempty"`
	TraderID  string    `json:"trader_id,omitempty"`
	Sum       int64     `json:"sum"`
	TokenOK   bool      `json:"token_ok"`
	RawQuery  string    `json:"raw_query,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
