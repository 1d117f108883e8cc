package response

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSuccess(t *testing.T) {
	data := map[string]string{"name": "test"}
	resp := Success(data)

	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if resp.Data == nil {
		t.Error("Expected data to be set")
	}
	if resp.Error != nil {
		t.Error("Expected error to be nil")
	}
}

func TestError(t *testing.T) {
	resp := Error(ErrCodeTenantNotFound, "Tenant not found")

	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Data != nil {
		t.Error("Expected data to be nil")
	}
	if resp.Error == nil {
		t.Fatal("Expected error to be set")
	}
	if resp.Error.Code != ErrCodeTenantNotFound {
		t.Errorf("Error.Code = %q, want %q", resp.Error.Code, ErrCodeTenantNotFound)
	}
}

func TestError_JSONFormat(t *testing.T) {
	resp := Error(ErrCodeForbidden, "nope")

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if parsed["success"] != false {
		t.Errorf("Expected success=false, got %v", parsed["success"])
	}
	if _, ok := parsed["data"]; ok {
		t.Error("Expected data field to be omitted")
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeTenantNotFound, http.StatusNotFound},
		{ErrCodeTenantDeleted, http.StatusGone},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := GetHTTPStatus(tt.code); got != tt.want {
			t.Errorf("GetHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
