package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/ratelimit"
	"github.com/xshayank/vpnmarket-reseller/internal/reconcile"
	"github.com/xshayank/vpnmarket-reseller/internal/repository"

	"go.uber.org/zap"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// remoteFailureMsg is the only thing callers see about a failed panel call;
// the attempt count and last error live in the config's event log.
const remoteFailureMsg = "operation failed, remote panel did not respond"

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, code int, msg string) error {
	return c.JSON(code, APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func parseIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// Deps bundles everything the API handlers need.
type Deps struct {
	Controller *lifecycle.Controller
	Reconciler *reconcile.Reconciler
	Resellers  *repository.ResellerRepository
	Configs    *repository.ConfigRepository
	Events     *repository.EventRepository
	Panels     *repository.PanelRepository
	Audit      *repository.AuditRepository
	Limiter    ratelimit.Limiter
	Logger     *zap.Logger
}
