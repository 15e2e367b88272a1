package referral

import (
	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/middleware"
)

// Handler handles HTTP requests for referrals and promo codes
type Handler struct {
	service *Service
}

// NewHandler creates a new referral handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Redeem handles POST /referral
func (h *Handler) Redeem(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req RedeemReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid referral request", err))
		return
	}

	resp, err := h.service.RedeemReferral(c.Request.Context(), userID, middleware.GetZone(c), req.ReferralCode)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, resp)
}

// RedeemPromo handles POST /promocode
func (h *Handler) RedeemPromo(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req RedeemPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid promo request", err))
		return
	}

	resp, err := h.service.RedeemPromo(c.Request.Context(), userID, req.PromoCode)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, resp)
}

// RegisterRoutesOnGroup registers the referral routes.
func (h *Handler) RegisterRoutesOnGroup(rg *gin.RouterGroup) {
	rg.POST("/referral", h.Redeem)
	rg.POST("/promocode", h.RedeemPromo)
}
