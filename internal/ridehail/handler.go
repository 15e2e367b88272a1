package ridehail

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/logger"
	"github.com/transitlab/tsp-api/pkg/middleware"
)

// Handler handles HTTP requests for ride hailing
type Handler struct {
	service       *Service
	webhookSecret string
}

// NewHandler creates a new ridehail handler
func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// Estimate handles POST /ridehail/estimate
func (h *Handler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid estimate request", err))
		return
	}

	products, err := h.service.Estimate(c.Request.Context(), req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"products": products})
}

// Order handles POST /ridehail/order
func (h *Handler) Order(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid order request", err))
		return
	}

	result, err := h.service.OrderGuestTrip(c.Request.Context(), userID, req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, result)
}

// GetTrip handles GET /ridehail/trip/:id
func (h *Handler) GetTrip(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid trip id", err))
		return
	}

	trip, err := h.service.GetTrip(c.Request.Context(), userID, tripID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, trip)
}

// Webhook handles POST /webhook/uber. The endpoint is unauthenticated;
// the HMAC signature over the raw body is the only credential. Rejections
// return 401 with no body so the endpoint leaks nothing to probes.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	signature := c.GetHeader("X-Uber-Signature")
	if !verifySignature(h.webhookSecret, body, signature) {
		logger.WithContext(c.Request.Context()).Warn("webhook signature rejected",
			zap.String("remote_addr", c.ClientIP()))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if event.EventID == "" || event.Meta.ResourceID == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := h.service.ProcessEvent(c.Request.Context(), &event, body); err != nil {
		logger.WithContext(c.Request.Context()).Error("webhook processing failed",
			zap.String("event_id", event.EventID), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

// verifySignature checks the lowercase hex HMAC-SHA256 of the raw body in
// constant time.
func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RegisterRoutesOnGroup registers the authenticated ride routes.
func (h *Handler) RegisterRoutesOnGroup(rg *gin.RouterGroup) {
	rg.POST("/ridehail/estimate", h.Estimate)
	rg.POST("/ridehail/order", h.Order)
	rg.GET("/ridehail/trip/:id", h.GetTrip)
}

// RegisterWebhookRoutes registers the vendor callback outside the JWT
// middleware.
func (h *Handler) RegisterWebhookRoutes(r gin.IRouter) {
	r.POST("/webhook/uber", h.Webhook)
}
