package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditHandler exposes reconciliation run history.
type AuditHandler struct {
	deps *Deps
}

func NewAuditHandler(deps *Deps) *AuditHandler {
	return &AuditHandler{deps: deps}
}

// Runs handles GET /api/audit: the latest run summaries for one job.
func (h *AuditHandler) Runs(c echo.Context) error {
	job := c.QueryParam("job")
	if job == "" {
		return errorResponse(c, http.StatusBadRequest, "job query parameter is required")
	}
	logs, err := h.deps.Audit.Recent(job, 50)
	if err != nil {
		h.deps.Logger.Error("api request failed",
			zap.String("path", c.Path()), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "internal error")
	}
	return successResponse(c, "audit runs", logs)
}
