package wallet

import (
	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/middleware"
)

// Handler handles HTTP requests for the wallet
type Handler struct {
	service *Service
}

// NewHandler creates a new wallet handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetSummary returns both balances and the refill settings
// GET /wallet/summary
func (h *Handler) GetSummary(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, summary)
}

// UpdateSettings updates the auto-refill configuration
// PUT /wallet/setting
func (h *Handler) UpdateSettings(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid request body", err))
		return
	}

	summary, err := h.service.UpdateSettings(c.Request.Context(), userID, req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, summary)
}

// ListProducts returns the purchasable coin bundles
// GET /points/products
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context(), KindPurchase)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"products": products})
}

// Buy charges the user's card for a coin bundle
// POST /points/buy
func (h *Handler) Buy(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid request body", err))
		return
	}

	result, err := h.service.BuyPointProduct(c.Request.Context(), userID, middleware.GetZone(c), req.ProductID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"balance": result.Balance})
}

// Redeem spends coins on a catalog item
// POST /redeem
func (h *Handler) Redeem(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid request body", err))
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), userID, middleware.GetZone(c), req.ID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"balance": result.Balance})
}

// RegisterRoutesOnGroup registers wallet routes on an authenticated group
func (h *Handler) RegisterRoutesOnGroup(rg *gin.RouterGroup) {
	rg.GET("/wallet/summary", h.GetSummary)
	rg.PUT("/wallet/setting", h.UpdateSettings)
	rg.GET("/points/products", h.ListProducts)
	rg.POST("/points/buy", h.Buy)
	rg.POST("/redeem", h.Redeem)
}
