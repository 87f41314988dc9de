package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/ratelimit"
)

// ConfigHandler exposes the config lifecycle operations.
type ConfigHandler struct {
	deps *Deps
}

func NewConfigHandler(deps *Deps) *ConfigHandler {
	return &ConfigHandler{deps: deps}
}

type createConfigRequest struct {
	ResellerID        uint       `json:"reseller_id"`
	ExternalUsername  string     `json:"external_username"`
	TrafficLimitBytes int64      `json:"traffic_limit_bytes"`
	ExpiresAt         *time.Time `json:"expires_at"`
	ResetIntervalDays int        `json:"reset_interval_days"`
	NextUsageResetAt  *time.Time `json:"next_usage_reset_at"`
	PanelID           uint       `json:"panel_id"`
	PanelType         string     `json:"panel_type"`
	PanelUserID       string     `json:"panel_user_id"`
}

// Create registers a new config for a reseller. The remote account must
// already exist on the panel; this records it and starts metering.
func (h *ConfigHandler) Create(c echo.Context) error {
	var req createConfigRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.ResellerID == 0 || req.PanelUserID == "" {
		return errorResponse(c, http.StatusBadRequest, "reseller_id and panel_user_id are required")
	}
	if _, err := h.deps.Resellers.FindByID(req.ResellerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "reseller not found")
		}
		return h.internalError(c, err)
	}

	cfg := &models.ResellerConfig{
		ResellerID:        req.ResellerID,
		ExternalUsername:  req.ExternalUsername,
		TrafficLimitBytes: req.TrafficLimitBytes,
		ExpiresAt:         req.ExpiresAt,
		ResetIntervalDays: req.ResetIntervalDays,
		NextUsageResetAt:  req.NextUsageResetAt,
		PanelID:           req.PanelID,
		PanelType:         req.PanelType,
		PanelUserID:       req.PanelUserID,
	}
	if cfg.NextUsageResetAt == nil && cfg.ResetIntervalDays > 0 {
		next := time.Now().AddDate(0, 0, cfg.ResetIntervalDays)
		cfg.NextUsageResetAt = &next
	}
	res, err := h.deps.Controller.Create(c.Request().Context(), cfg)
	if err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "config created", res.Config)
}

// Enable handles POST /api/configs/:id/enable.
func (h *ConfigHandler) Enable(c echo.Context) error {
	return h.transition(c, func(id uint) (*lifecycle.Result, error) {
		return h.deps.Controller.Enable(c.Request().Context(), id, models.ReasonManual)
	}, "config enabled")
}

// Disable handles POST /api/configs/:id/disable.
func (h *ConfigHandler) Disable(c echo.Context) error {
	return h.transition(c, func(id uint) (*lifecycle.Result, error) {
		return h.deps.Controller.Disable(c.Request().Context(), id, models.ReasonManual)
	}, "config disabled")
}

// ResetUsage handles POST /api/configs/:id/reset-usage. A per-config
// cooldown keeps a panicking client from burning panel API calls.
func (h *ConfigHandler) ResetUsage(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid config id")
	}

	allowed, err := h.deps.Limiter.Allow(c.Request().Context(), ratelimit.ConfigKey(id))
	if err != nil {
		h.deps.Logger.Warn("reset cooldown check failed", zap.Error(err))
	} else if !allowed {
		return errorResponse(c, http.StatusTooManyRequests, "usage was reset recently, try again later")
	}

	res, err := h.deps.Controller.ResetUsage(c.Request().Context(), id, models.ReasonManual)
	if err != nil {
		return h.transitionError(c, err)
	}

	// The aggregate is unchanged by a reset, but the cached per-reseller
	// counter is refreshed so reads do not wait for the next sweep.
	if err := h.deps.Reconciler.RefreshResellerAggregate(res.Config.ResellerID); err != nil {
		h.deps.Logger.Warn("failed to refresh reseller aggregate",
			zap.Uint("reseller_id", res.Config.ResellerID), zap.Error(err))
	}
	return h.respondTransition(c, res, "usage reset")
}

type batchResetRequest struct {
	ConfigIDs []uint `json:"config_ids"`
}

// ResetUsageBatch handles POST /api/configs/reset-usage: resets many configs
// in one run, each in its own transaction, and reports the tally. Failures
// are counted, not fatal.
func (h *ConfigHandler) ResetUsageBatch(c echo.Context) error {
	var req batchResetRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if len(req.ConfigIDs) == 0 {
		return errorResponse(c, http.StatusBadRequest, "config_ids must not be empty")
	}

	tally := h.deps.Reconciler.ResetUsageBatch(c.Request().Context(), req.ConfigIDs, models.ReasonAdmin)
	return successResponse(c, "usage reset batch finished", tally)
}

// Delete handles DELETE /api/configs/:id (soft delete).
func (h *ConfigHandler) Delete(c echo.Context) error {
	return h.transition(c, func(id uint) (*lifecycle.Result, error) {
		return h.deps.Controller.SoftDelete(c.Request().Context(), id, models.ReasonAdmin)
	}, "config deleted")
}

// Events handles GET /api/configs/:id/events. Soft-deleted configs keep
// their history readable.
func (h *ConfigHandler) Events(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid config id")
	}
	if _, err := h.deps.Configs.FindByIDAny(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "config not found")
		}
		return h.internalError(c, err)
	}
	events, err := h.deps.Events.ListByConfig(id, 100)
	if err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "events", events)
}

func (h *ConfigHandler) transition(c echo.Context, run func(id uint) (*lifecycle.Result, error), okMsg string) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid config id")
	}
	res, err := run(id)
	if err != nil {
		return h.transitionError(c, err)
	}
	return h.respondTransition(c, res, okMsg)
}

// respondTransition reports a committed transition. A failed remote call
// does not undo the local change; the caller gets a generic message and the
// detail stays in the event log.
func (h *ConfigHandler) respondTransition(c echo.Context, res *lifecycle.Result, okMsg string) error {
	obj := map[string]interface{}{
		"config":         res.Config,
		"event_id":       res.Event.ID,
		"remote_success": res.Remote.Success,
	}
	if !res.Remote.Success {
		return c.JSON(http.StatusOK, APIResponse{
			Status: false,
			Msg:    remoteFailureMsg,
			Obj:    obj,
		})
	}
	return successResponse(c, okMsg, obj)
}

func (h *ConfigHandler) transitionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errorResponse(c, http.StatusNotFound, "config not found")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return errorResponse(c, http.StatusConflict, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ConfigHandler) internalError(c echo.Context, err error) error {
	h.deps.Logger.Error("api request failed",
		zap.String("path", c.Path()), zap.Error(err))
	return errorResponse(c, http.StatusInternalServerError, "internal error")
}
