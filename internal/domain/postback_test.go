package domain

import (
	"testing"
)

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		raw  string
		want EventKind
	}{
		{"reg", EventRegistration},
		{"registration", EventRegistration},
		{"signup", EventRegistration},
		{"sign_up", EventRegistration},
		{"REG", EventRegistration},
		{"dep", EventDeposit},
		{"deposit", EventDeposit},
		{"payment", EventDeposit},
		{"Payment", EventDeposit},
		{"refund", EventKind("refund")},
		{"", EventKind("")},
	}

	for _, tt := range tests {
		if got := NormalizeEvent(tt.raw); got != tt.want {
			t.Errorf("NormalizeEvent(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestEventKind_Valid(t *testing.T) {
	if !EventRegistration.Valid() {
		t.Error("registration should be valid")
	}
	if !EventDeposit.Valid() {
		t.Error("deposit should be valid")
	}
	if EventKind("refund").Valid() {
		t.Error("refund should not be valid")
	}
}

func TestParseSum(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"50", 50},
		{"49.99", 49},
		{"100.5", 100},
		{"abc", 0},
		{"-10", -10},
	}

	for _, tt := range tests {
		if got := ParseSum(tt.raw); got != tt.want {
			t.Errorf("ParseSum(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
