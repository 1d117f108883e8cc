package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/meep1w/pocket/internal/lock"
	"github.com/meep1w/pocket/internal/notify"
	"github.com/meep1w/pocket/internal/repository"
	"github.com/meep1w/pocket/internal/service"
	"github.com/meep1w/pocket/pkg/response"
)

const testJWTSecret = "test-jwt-secret"

func operatorToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": "op-1",
		"role":        "admin",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func setupAdminRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tenants := repository.NewMemoryTenantRepository()
	users := repository.NewMemoryUserRepository()
	postbacks := repository.NewMemoryPostbackRepository()

	svc := service.NewTenantService(tenants, tenants, users, postbacks)

	return SetupRouter(&RouterConfig{
		PostbackHandler: NewPostbackHandler(service.NewPostbackService(
			tenants, tenants, users, postbacks, lock.NewKeyedMutex(),
			notify.NewLogNotifier(), service.SecretModeTenant, "")),
		TenantHandler: NewTenantHandler(svc),
		HealthHandler: NewHealthHandler(nil, nil),
		JWTSecret:     testJWTSecret,
	})
}

func doJSON(router *gin.Engine, method, url, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal envelope: %v, body %q", err, w.Body.String())
	}
	return &resp
}

func TestAdminAPI_RequiresJWT(t *testing.T) {
	router := setupAdminRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/tenants", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/tenants", "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("with bad token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAdminAPI_TenantLifecycle(t *testing.T) {
	router := setupAdminRouter(t)
	token := operatorToken(t)

	// create
	w := doJSON(router, http.MethodPost, "/api/v1/tenants", token, map[string]any{
		"owner_id":        42,
		"bot_token":       "123:abcdef",
		"bot_username":    "my_bot",
		"postback_secret": "s3cret",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %q", w.Code, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	if !resp.Success {
		t.Fatalf("create: envelope not successful: %+v", resp.Error)
	}
	created := resp.Data.(map[string]any)
	id := int64(created["id"].(float64))
	if created["status"] != "active" {
		t.Errorf("new tenant status = %v, want active", created["status"])
	}
	if _, leaked := created["bot_token"]; leaked {
		t.Error("bot token echoed in API response")
	}

	// get
	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/tenants/%d", id), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}

	// config is lazily created with defaults
	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/tenants/%d/config", id), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get config: status = %d", w.Code)
	}
	resp = decodeEnvelope(t, w)
	cfg := resp.Data.(map[string]any)
	if cfg["min_deposit"].(float64) != 50 || cfg["vip_threshold"].(float64) != 500 {
		t.Errorf("default config = %v", cfg)
	}

	// patch config
	w = doJSON(router, http.MethodPatch, fmt.Sprintf("/api/v1/tenants/%d/config", id), token, map[string]any{
		"min_deposit": 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch config: status = %d, body %q", w.Code, w.Body.String())
	}
	resp = decodeEnvelope(t, w)
	if resp.Data.(map[string]any)["min_deposit"].(float64) != 100 {
		t.Errorf("patched config = %v", resp.Data)
	}

	// pause
	w = doJSON(router, http.MethodPut, fmt.Sprintf("/api/v1/tenants/%d/status", id), token, map[string]any{
		"status": "paused",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set status: status = %d, body %q", w.Code, w.Body.String())
	}

	// delete hides the tenant from reads
	w = doJSON(router, http.MethodPut, fmt.Sprintf("/api/v1/tenants/%d/status", id), token, map[string]any{
		"status": "deleted",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/tenants/%d", id), token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp = decodeEnvelope(t, w)
	if resp.Error == nil || resp.Error.Code != response.ErrCodeTenantNotFound {
		t.Errorf("get deleted: error = %+v, want code %s", resp.Error, response.ErrCodeTenantNotFound)
	}
}

func TestAdminAPI_Validation(t *testing.T) {
	router := setupAdminRouter(t)
	token := operatorToken(t)

	// missing bot token
	w := doJSON(router, http.MethodPost, "/api/v1/tenants", token, map[string]any{
		"owner_id": 42,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without bot token: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// unknown status
	w = doJSON(router, http.MethodPut, "/api/v1/tenants/1/status", token, map[string]any{
		"status": "hibernating",
	})
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Errorf("bad status: status = %d", w.Code)
	}

	// unknown tenant
	w = doJSON(router, http.MethodGet, "/api/v1/tenants/999", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tenant: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	// malformed id
	w = doJSON(router, http.MethodGet, "/api/v1/tenants/abc", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// negative threshold
	w = doJSON(router, http.MethodPatch, "/api/v1/tenants/1/config", token, map[string]any{
		"min_deposit": -5,
	})
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Errorf("negative threshold: status = %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupAdminRouter(t)

	w := doJSON(router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestWorkersEndpoint(t *testing.T) {
	router := setupAdminRouter(t)
	token := operatorToken(t)

	w := doJSON(router, http.MethodGet, "/api/v1/workers", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("workers: status = %d", w.Code)
	}
	resp := decodeEnvelope(t, w)
	if !resp.Success {
		t.Errorf("workers: envelope not successful")
	}
}
