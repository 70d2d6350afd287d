package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nestwatch/conbee-gateway/pkg/api/types"
	"github.com/nestwatch/conbee-gateway/pkg/automation"
)

// AutomationsHandler handles automation CRUD and trigger endpoints.
type AutomationsHandler struct {
	engine *automation.Engine
}

// NewAutomationsHandler creates a new automations handler.
func NewAutomationsHandler(engine *automation.Engine) *AutomationsHandler {
	return &AutomationsHandler{engine: engine}
}

// ListAutomations handles GET /automations
func (h *AutomationsHandler) ListAutomations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"automations": h.engine.List()})
}

// GetAutomation handles GET /automations/:id
func (h *AutomationsHandler) GetAutomation(c *gin.Context) {
	a, ok := h.engine.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not_found", Message: "automation not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// CreateAutomation handles POST /automations
func (h *AutomationsHandler) CreateAutomation(c *gin.Context) {
	var req automation.CreateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	a, err := h.engine.Create(req)
	if err != nil {
		writeAutomationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// UpdateAutomation handles PATCH /automations/:id
func (h *AutomationsHandler) UpdateAutomation(c *gin.Context) {
	var req automation.UpdateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	a, err := h.engine.Update(c.Param("id"), req)
	if err != nil {
		writeAutomationError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteAutomation handles DELETE /automations/:id
func (h *AutomationsHandler) DeleteAutomation(c *gin.Context) {
	if err := h.engine.Delete(c.Param("id")); err != nil {
		writeAutomationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TriggerAutomation handles POST /automations/:id/trigger
func (h *AutomationsHandler) TriggerAutomation(c *gin.Context) {
	if err := h.engine.Trigger(c.Param("id")); err != nil {
		writeAutomationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "triggered"})
}

// EnableAutomation handles POST /automations/:id/enable
func (h *AutomationsHandler) EnableAutomation(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableAutomation handles POST /automations/:id/disable
func (h *AutomationsHandler) DisableAutomation(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *AutomationsHandler) setEnabled(c *gin.Context, enabled bool) {
	a, err := h.engine.Update(c.Param("id"), automation.UpdateAutomationRequest{Enabled: &enabled})
	if err != nil {
		writeAutomationError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func writeAutomationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, automation.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, automation.ErrDisabled):
		c.JSON(http.StatusConflict, types.ErrorResponse{Error: "disabled", Message: err.Error()})
	case errors.Is(err, automation.ErrInvalidTrigger),
		errors.Is(err, automation.ErrInvalidCondition),
		errors.Is(err, automation.ErrInvalidAction),
		errors.Is(err, automation.ErrInvalidCron),
		errors.Is(err, automation.ErrInvalidTimeFormat):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal_error", Message: err.Error()})
	}
}
