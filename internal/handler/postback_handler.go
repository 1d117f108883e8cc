package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meep1w/pocket/internal/service"
)

// PostbackHandler handles affiliate postback HTTP requests. The wire
// contract is fixed by the affiliate networks that call it: plain-text
// error bodies, bare JSON acks, GET with query parameters.
type PostbackHandler struct {
	postbackService service.PostbackService
}

// NewPostbackHandler creates a new PostbackHandler
func NewPostbackHandler(postbackService service.PostbackService) *PostbackHandler {
	return &PostbackHandler{postbackService: postbackService}
}

// Ingest handles an inbound conversion event
// GET /pb?tenant_id=&event=&t=&click_id=&trader_id=&sum=
func (h *PostbackHandler) Ingest(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Query("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		c.String(http.StatusNotFound, "tenant not found")
		return
	}

	in := &service.IngestInput{
		TenantID: tenantID,
		Event:    c.Query("event"),
		ClickID:  c.Query("click_id"),
		TraderID: c.Query("trader_id"),
		Sum:      c.Query("sum"),
		Token:    c.Query("t"),
		RawQuery: c.Request.URL.RawQuery,
	}

	result, err := h.postbackService.Ingest(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			c.String(http.StatusNotFound, "tenant not found")
		case errors.Is(err, service.ErrForbidden):
			c.String(http.StatusForbidden, "forbidden")
		case errors.Is(err, service.ErrInvalidEvent):
			c.String(http.StatusBadRequest, "unknown event")
		default:
			c.String(http.StatusInternalServerError, "internal error")
		}
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"ok": true, "dup": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CheckAccess reports whether a Telegram user unlocked the product
// GET /miniapp/access?tenant_id=&tg_user_id=
func (h *PostbackHandler) CheckAccess(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Query("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		c.String(http.StatusNotFound, "tenant not found")
		return
	}
	tgUserID, err := strconv.ParseInt(c.Query("tg_user_id"), 10, 64)
	if err != nil || tgUserID <= 0 {
		c.String(http.StatusForbidden, "forbidden")
		return
	}

	ok, _, err := h.postbackService.CheckAccess(c.Request.Context(), tenantID, tgUserID)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			c.String(http.StatusNotFound, "tenant not found")
			return
		}
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		c.String(http.StatusForbidden, "forbidden")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
