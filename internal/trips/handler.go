package trips

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/middleware"
)

// Handler handles HTTP requests for trips
type Handler struct {
	service *Service
}

// NewHandler creates a new trips handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Start handles POST /trip/start
func (h *Handler) Start(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid trip start request", err))
		return
	}

	id, err := h.service.StartTrip(c.Request.Context(), userID, req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"trip_id": id})
}

// End handles POST /trip/end
func (h *Handler) End(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req EndTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid trip end request", err))
		return
	}

	trip, err := h.service.EndTrip(c.Request.Context(), userID, req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"trip_id": trip.ID, "mode": trip.TravelMode})
}

// UploadTrajectory handles POST /trip/trajectory
func (h *Handler) UploadTrajectory(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req UploadTrajectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid trajectory upload", err))
		return
	}

	if err := h.service.UploadTrajectory(c.Request.Context(), userID, req); err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"trip_id": req.TripID, "points": len(req.Points)})
}

// Get handles GET /trip/:id
func (h *Handler) Get(c *gin.Context) {
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

// List handles GET /trips
func (h *Handler) List(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	out, err := h.service.ListTrips(c.Request.Context(), userID, limit)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"trips": out})
}

// RegisterRoutesOnGroup registers the trip routes.
func (h *Handler) RegisterRoutesOnGroup(rg *gin.RouterGroup) {
	rg.POST("/trip/start", h.Start)
	rg.POST("/trip/end", h.End)
	rg.POST("/trip/trajectory", h.UploadTrajectory)
	rg.GET("/trip/:id", h.Get)
	rg.GET("/trips", h.List)
}
