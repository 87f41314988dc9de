package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/usage"
)

// ResellerHandler exposes reseller accounting endpoints.
type ResellerHandler struct {
	deps *Deps
}

func NewResellerHandler(deps *Deps) *ResellerHandler {
	return &ResellerHandler{deps: deps}
}

type createResellerRequest struct {
	Type              string     `json:"type"`
	UsernamePrefix    string     `json:"username_prefix"`
	TrafficTotalBytes *int64     `json:"traffic_total_bytes"`
	WindowStartsAt    *time.Time `json:"window_starts_at"`
	WindowEndsAt      *time.Time `json:"window_ends_at"`
}

// Create registers a new reseller.
func (h *ResellerHandler) Create(c echo.Context) error {
	var req createResellerRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Type != models.ResellerTypePlan && req.Type != models.ResellerTypeTraffic {
		return errorResponse(c, http.StatusBadRequest, "type must be plan or traffic")
	}

	reseller := &models.Reseller{
		Type:              req.Type,
		Status:            models.ResellerStatusActive,
		UsernamePrefix:    req.UsernamePrefix,
		TrafficTotalBytes: req.TrafficTotalBytes,
		WindowStartsAt:    req.WindowStartsAt,
		WindowEndsAt:      req.WindowEndsAt,
	}
	if err := h.deps.Resellers.Create(reseller); err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "reseller created", reseller)
}

// Usage handles GET /api/resellers/:id/usage: the live aggregate computed
// from all configs including soft-deleted ones, plus a per-config breakdown.
func (h *ResellerHandler) Usage(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid reseller id")
	}
	reseller, err := h.deps.Resellers.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "reseller not found")
		}
		return h.internalError(c, err)
	}
	configs, err := h.deps.Configs.FindAllByReseller(id)
	if err != nil {
		return h.internalError(c, err)
	}

	type configUsage struct {
		ConfigID          uint   `json:"config_id"`
		Status            string `json:"status"`
		UsageBytes        int64  `json:"usage_bytes"`
		SettledUsageBytes int64  `json:"settled_usage_bytes"`
		TotalBytes        int64  `json:"total_bytes"`
		Deleted           bool   `json:"deleted"`
	}
	breakdown := make([]configUsage, 0, len(configs))
	for i := range configs {
		cfg := &configs[i]
		breakdown = append(breakdown, configUsage{
			ConfigID:          cfg.ID,
			Status:            cfg.Status,
			UsageBytes:        cfg.UsageBytes,
			SettledUsageBytes: cfg.SettledUsageBytes,
			TotalBytes:        usage.Total(cfg),
			Deleted:           cfg.DeletedAt.Valid,
		})
	}

	return successResponse(c, "usage", map[string]interface{}{
		"reseller_id":         reseller.ID,
		"status":              reseller.Status,
		"traffic_total_bytes": reseller.TrafficTotalBytes,
		"forgiven_bytes":      reseller.ForgivenBytes,
		"aggregate_bytes":     usage.Aggregate(configs, reseller.ForgivenBytes),
		"window_starts_at":    reseller.WindowStartsAt,
		"window_ends_at":      reseller.WindowEndsAt,
		"configs":             breakdown,
	})
}

type creditRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// Credit handles POST /api/resellers/:id/credit: adjusts the wallet balance
// and records the transaction under the same row lock.
func (h *ResellerHandler) Credit(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid reseller id")
	}
	var req creditRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Amount == 0 {
		return errorResponse(c, http.StatusBadRequest, "amount must be non-zero")
	}
	reason := req.Reason
	if reason == "" {
		reason = models.ReasonAdmin
	}

	reseller, err := h.deps.Resellers.CreditWallet(id, req.Amount, reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "reseller not found")
		}
		return h.internalError(c, err)
	}
	if err := h.deps.Reconciler.RecoverReseller(c.Request().Context(), id); err != nil {
		h.deps.Logger.Warn("recovery check after credit failed",
			zap.Uint("reseller_id", id), zap.Error(err))
	}
	return successResponse(c, "wallet credited", map[string]interface{}{
		"reseller_id":    reseller.ID,
		"wallet_balance": reseller.WalletBalance,
	})
}

type forgiveRequest struct {
	Bytes int64 `json:"bytes"`
}

// Forgive handles POST /api/resellers/:id/forgive: adds to the forgiven
// byte counter so the next recovery sweep can reactivate the reseller
// without touching per-config counters.
func (h *ResellerHandler) Forgive(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid reseller id")
	}
	var req forgiveRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Bytes <= 0 {
		return errorResponse(c, http.StatusBadRequest, "bytes must be positive")
	}

	reseller, err := h.deps.Resellers.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "reseller not found")
		}
		return h.internalError(c, err)
	}
	if err := h.deps.Resellers.Update(id, map[string]interface{}{
		"forgiven_bytes": gorm.Expr("forgiven_bytes + ?", req.Bytes),
	}); err != nil {
		return h.internalError(c, err)
	}
	if err := h.deps.Reconciler.RefreshResellerAggregate(id); err != nil {
		h.deps.Logger.Warn("failed to refresh reseller aggregate",
			zap.Uint("reseller_id", id), zap.Error(err))
	}
	if err := h.deps.Reconciler.RecoverReseller(c.Request().Context(), id); err != nil {
		h.deps.Logger.Warn("recovery check after forgiveness failed",
			zap.Uint("reseller_id", id), zap.Error(err))
	}
	return successResponse(c, "traffic forgiven", map[string]interface{}{
		"reseller_id":    reseller.ID,
		"forgiven_bytes": reseller.ForgivenBytes + req.Bytes,
	})
}

func (h *ResellerHandler) internalError(c echo.Context, err error) error {
	h.deps.Logger.Error("api request failed",
		zap.String("path", c.Path()), zap.Error(err))
	return errorResponse(c, http.StatusInternalServerError, "internal error")
}
