package incentive

import (
	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/common"
)

// Handler exposes the rule administration endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new incentive handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetRule handles GET /incentive/rule/:market
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), c.Param("market"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, rule)
}

// UpsertRule handles PUT /incentive/rule. Rule changes come from the
// operations tooling, not mobile clients, so the route sits behind the
// internal API key instead of user auth.
func (h *Handler) UpsertRule(c *gin.Context) {
	var req UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid rule", err))
		return
	}

	rule, err := h.service.UpsertRule(c.Request.Context(), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, rule)
}

// RegisterRoutesOnGroup registers the user-facing incentive routes.
func (h *Handler) RegisterRoutesOnGroup(rg *gin.RouterGroup) {
	rg.GET("/incentive/rule/:market", h.GetRule)
}

// RegisterInternalRoutes registers the rule administration routes behind
// the supplied guard middleware.
func (h *Handler) RegisterInternalRoutes(r gin.IRouter, guard gin.HandlerFunc) {
	r.PUT("/incentive/rule", guard, h.UpsertRule)
}
