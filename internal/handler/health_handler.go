package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meep1w/pocket/internal/supervisor"
	"github.com/meep1w/pocket/pkg/database"
	"github.com/meep1w/pocket/pkg/response"
)

// HealthHandler handles liveness and fleet status requests
type HealthHandler struct {
	db  *database.PostgresDB
	sup *supervisor.Supervisor
}

// NewHealthHandler creates a new HealthHandler. Both dependencies are
// optional; absent ones are skipped in the report.
func NewHealthHandler(db *database.PostgresDB, sup *supervisor.Supervisor) *HealthHandler {
	return &HealthHandler{db: db, sup: sup}
}

// Health handles the liveness probe
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}

	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}

	c.JSON(http.StatusOK, status)
}

// Workers handles the fleet snapshot for operators
// GET /api/v1/workers
func (h *HealthHandler) Workers(c *gin.Context) {
	if h.sup == nil {
		c.JSON(http.StatusOK, response.Success(supervisor.Stats{}))
		return
	}
	c.JSON(http.StatusOK, response.Success(h.sup.Stats()))
}
