package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/handler/api"
	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/middleware"
	"github.com/xshayank/vpnmarket-reseller/internal/ratelimit"
	"github.com/xshayank/vpnmarket-reseller/internal/reconcile"
	"github.com/xshayank/vpnmarket-reseller/internal/repository"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	controller *lifecycle.Controller,
	reconciler *reconcile.Reconciler,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
	apiKey string,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	deps := &api.Deps{
		Controller: controller,
		Reconciler: reconciler,
		Resellers:  repository.NewResellerRepository(db),
		Configs:    repository.NewConfigRepository(db),
		Events:     repository.NewEventRepository(db),
		Panels:     repository.NewPanelRepository(db),
		Audit:      repository.NewAuditRepository(db),
		Limiter:    limiter,
		Logger:     logger,
	}
	configHandler := api.NewConfigHandler(deps)
	resellerHandler := api.NewResellerHandler(deps)
	panelHandler := api.NewPanelHandler(deps)
	auditHandler := api.NewAuditHandler(deps)

	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.POST("/configs", configHandler.Create)
	apiGroup.POST("/configs/reset-usage", configHandler.ResetUsageBatch)
	apiGroup.POST("/configs/:id/enable", configHandler.Enable)
	apiGroup.POST("/configs/:id/disable", configHandler.Disable)
	apiGroup.POST("/configs/:id/reset-usage", configHandler.ResetUsage)
	apiGroup.DELETE("/configs/:id", configHandler.Delete)
	apiGroup.GET("/configs/:id/events", configHandler.Events)

	apiGroup.POST("/resellers", resellerHandler.Create)
	apiGroup.GET("/resellers/:id/usage", resellerHandler.Usage)
	apiGroup.POST("/resellers/:id/credit", resellerHandler.Credit)
	apiGroup.POST("/resellers/:id/forgive", resellerHandler.Forgive)

	apiGroup.POST("/panels", panelHandler.Create)
	apiGroup.GET("/panels", panelHandler.List)
	apiGroup.PUT("/panels/:id", panelHandler.Update)
	apiGroup.DELETE("/panels/:id", panelHandler.Delete)

	apiGroup.GET("/audit", auditHandler.Runs)

	e.GET("/health", func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
