package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/internal/lock"
	"github.com/meep1w/pocket/internal/notify"
	"github.com/meep1w/pocket/internal/repository"
	"github.com/meep1w/pocket/internal/service"
)

func setupPostbackRouter(t *testing.T) (*gin.Engine, *domain.Tenant, *repository.MemoryUserRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tenants := repository.NewMemoryTenantRepository()
	users := repository.NewMemoryUserRepository()
	postbacks := repository.NewMemoryPostbackRepository()

	tenant, err := domain.NewTenant(1, "123:token", "bot")
	if err != nil {
		t.Fatalf("NewTenant() error = %v", err)
	}
	tenant.PostbackSecret = "s3cret"
	if err := tenants.Create(context.Background(), tenant); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	svc := service.NewPostbackService(tenants, tenants, users, postbacks,
		lock.NewKeyedMutex(), notify.NewLogNotifier(), service.SecretModeTenant, "")

	h := NewPostbackHandler(svc)
	router := gin.New()
	router.GET("/pb", h.Ingest)
	router.GET("/miniapp/access", h.CheckAccess)
	return router, tenant, users
}

func doGet(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestPostbackEndpoint_Accepted(t *testing.T) {
	router, _, _ := setupPostbackRouter(t)

	w := doGet(router, "/pb?tenant_id=1&event=reg&click_id=c1&t=s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %q", w.Code, http.StatusOK, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("body = %v, want ok=true", body)
	}
	if _, hasDup := body["dup"]; hasDup {
		t.Errorf("first delivery carries dup flag: %v", body)
	}
}

func TestPostbackEndpoint_Duplicate(t *testing.T) {
	router, _, _ := setupPostbackRouter(t)

	doGet(router, "/pb?tenant_id=1&event=dep&click_id=c1&sum=60&t=s3cret")
	w := doGet(router, "/pb?tenant_id=1&event=dep&click_id=c1&sum=60&t=s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["ok"] != true || body["dup"] != true {
		t.Errorf("body = %v, want ok=true dup=true", body)
	}
}

func TestPostbackEndpoint_Forbidden(t *testing.T) {
	router, _, _ := setupPostbackRouter(t)

	w := doGet(router, "/pb?tenant_id=1&event=reg&click_id=c1&t=wrong")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if w.Body.String() != "forbidden" {
		t.Errorf("body = %q, want %q", w.Body.String(), "forbidden")
	}
}

func TestPostbackEndpoint_TenantNotFound(t *testing.T) {
	router, _, _ := setupPostbackRouter(t)

	for _, url := range []string{
		"/pb?tenant_id=999&event=reg&click_id=c1&t=s3cret",
		"/pb?event=reg&click_id=c1&t=s3cret",
		"/pb?tenant_id=abc&event=reg&click_id=c1&t=s3cret",
	} {
		w := doGet(router, url)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want %d", url, w.Code, http.StatusNotFound)
			continue
		}
		if w.Body.String() != "tenant not found" {
			t.Errorf("GET %s: body = %q, want %q", url, w.Body.String(), "tenant not found")
		}
	}
}

func TestPostbackEndpoint_UnknownEvent(t *testing.T) {
	router, _, _ := setupPostbackRouter(t)

	w := doGet(router, "/pb?tenant_id=1&event=chargeback&click_id=c1&t=s3cret")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAccessEndpoint(t *testing.T) {
	router, tenant, users := setupPostbackRouter(t)

	tgID := int64(777)
	user := &domain.User{TenantID: tenant.ID, TgUserID: &tgID, ClickID: "777", Step: domain.StepNew}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user error = %v", err)
	}

	// locked until the funnel completes
	w := doGet(router, "/miniapp/access?tenant_id=1&tg_user_id=777")
	if w.Code != http.StatusForbidden || w.Body.String() != "forbidden" {
		t.Errorf("locked user: status = %d body = %q", w.Code, w.Body.String())
	}

	doGet(router, "/pb?tenant_id=1&event=reg&click_id=777&t=s3cret")
	doGet(router, "/pb?tenant_id=1&event=dep&click_id=777&sum=50&t=s3cret")

	w = doGet(router, "/miniapp/access?tenant_id=1&tg_user_id=777")
	if w.Code != http.StatusOK {
		t.Fatalf("unlocked user: status = %d, want %d", w.Code, http.StatusOK)
	}

	// unknown tenant
	w = doGet(router, "/miniapp/access?tenant_id=42&tg_user_id=777")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tenant: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	// unknown user stays locked
	w = doGet(router, "/miniapp/access?tenant_id=1&tg_user_id=31337")
	if w.Code != http.StatusForbidden {
		t.Errorf("unknown user: status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
