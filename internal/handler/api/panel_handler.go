package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/panel"
)

// PanelHandler exposes panel credential management.
type PanelHandler struct {
	deps *Deps
}

func NewPanelHandler(deps *Deps) *PanelHandler {
	return &PanelHandler{deps: deps}
}

type panelRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	APIKey    string `json:"api_key"`
	InboundID string `json:"inbound_id"`
	Status    string `json:"status"`
}

// Create handles POST /api/panels. The credentials are run through the panel
// factory first so a typo'd type or missing secret is rejected before it can
// strand configs behind an unusable panel record.
func (h *PanelHandler) Create(c echo.Context) error {
	var req panelRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	p := &models.Panel{
		Name:      req.Name,
		Type:      req.Type,
		URL:       req.URL,
		Username:  req.Username,
		Password:  req.Password,
		APIKey:    req.APIKey,
		InboundID: req.InboundID,
		Status:    req.Status,
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if _, err := panel.PanelFactory(p); err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}

	if err := h.deps.Panels.Create(p); err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "panel created", p)
}

// List handles GET /api/panels, optionally filtered by ?type=.
func (h *PanelHandler) List(c echo.Context) error {
	var (
		panels []models.Panel
		err    error
	)
	if panelType := c.QueryParam("type"); panelType != "" {
		panels, err = h.deps.Panels.FindByType(panelType)
	} else {
		panels, err = h.deps.Panels.FindActive()
	}
	if err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "panels", panels)
}

// Update handles PUT /api/panels/:id.
func (h *PanelHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid panel id")
	}
	if _, err := h.deps.Panels.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "panel not found")
		}
		return h.internalError(c, err)
	}

	var req panelRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.URL != "" {
		updates["url"] = req.URL
	}
	if req.Username != "" {
		updates["username"] = req.Username
	}
	if req.Password != "" {
		updates["password"] = req.Password
	}
	if req.APIKey != "" {
		updates["api_key"] = req.APIKey
	}
	if req.InboundID != "" {
		updates["inbound_id"] = req.InboundID
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if len(updates) == 0 {
		return errorResponse(c, http.StatusBadRequest, "nothing to update")
	}

	if err := h.deps.Panels.Update(id, updates); err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "panel updated", map[string]interface{}{"panel_id": id})
}

// Delete handles DELETE /api/panels/:id.
func (h *PanelHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid panel id")
	}
	if err := h.deps.Panels.Delete(id); err != nil {
		return h.internalError(c, err)
	}
	return successResponse(c, "panel deleted", map[string]interface{}{"panel_id": id})
}

func (h *PanelHandler) internalError(c echo.Context, err error) error {
	h.deps.Logger.Error("api request failed",
		zap.String("path", c.Path()), zap.Error(err))
	return errorResponse(c, http.StatusInternalServerError, "internal error")
}
