package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/meep1w/pocket/pkg/middleware"
)

// RouterConfig holds everything the router needs
type RouterConfig struct {
	PostbackHandler *PostbackHandler
	TenantHandler   *TenantHandler
	HealthHandler   *HealthHandler
	JWTSecret       string
}

// SetupRouter wires the public ingestion surface and the JWT-guarded
// operator API onto one gin engine
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger("/health"))

	router.GET("/health", cfg.HealthHandler.Health)

	// public affiliate-facing surface, authenticated by postback token
	router.GET("/pb", cfg.PostbackHandler.Ingest)
	router.GET("/miniapp/access", cfg.PostbackHandler.CheckAccess)

	api := router.Group("/api/v1")
	api.Use(middleware.JWTMiddleware(&middleware.JWTConfig{Secret: cfg.JWTSecret}))
	{
		api.GET("/workers", cfg.HealthHandler.Workers)

		tenants := api.Group("/tenants")
		{
			tenants.POST("", cfg.TenantHandler.Create)
			tenants.GET("", cfg.TenantHandler.List)
			tenants.GET("/:id", cfg.TenantHandler.GetByID)
			tenants.PATCH("/:id", cfg.TenantHandler.Update)
			tenants.PUT("/:id/status", cfg.TenantHandler.SetStatus)
			tenants.GET("/:id/config", cfg.TenantHandler.GetConfig)
			tenants.PATCH("/:id/config", cfg.TenantHandler.UpdateConfig)
			tenants.POST("/:id/reset-user", cfg.TenantHandler.ResetUserFunnel)
		}
	}

	return router
}
