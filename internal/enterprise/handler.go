package enterprise

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/common"
	"github.com/transitlab/tsp-api/pkg/middleware"
)

var verifyPage = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<head><title>Carpool Email Verification</title></head>
<body>
{{if .OK}}
<h1>Email verified</h1>
<p>{{.Email}} is now linked to your carpool group. You can return to the app.</p>
{{else}}
<h1>Verification failed</h1>
<p>{{.Message}}</p>
{{end}}
</body>
</html>
`))

type verifyPageData struct {
	OK      bool
	Email   string
	Message string
}

// Handler handles HTTP requests for enterprise carpool verification
type Handler struct {
	service *Service
}

// NewHandler creates a new enterprise handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RequestVerification handles POST /setting_carpool_email
func (h *Handler) RequestVerification(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	var req RequestVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, common.NewBadRequestError("invalid verification request", err))
		return
	}

	resp, err := h.service.RequestVerification(c.Request.Context(), userID, req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, resp)
}

// VerifyEmail handles GET /verify_carpool_email.html. This is the landing
// page of the emailed link, so it renders HTML rather than the JSON envelope.
func (h *Handler) VerifyEmail(c *gin.Context) {
	v, err := h.service.VerifyEmail(c.Request.Context(), c.Query("verify_token"))
	if err != nil {
		msg := "This verification link is invalid or has expired. Request a new one from the app."
		if appErr, ok := common.AsAppError(err); ok && appErr.HTTPStatus >= http.StatusInternalServerError {
			msg = "Something went wrong on our side. Please try the link again in a moment."
		}
		c.Status(http.StatusOK)
		_ = verifyPage.Execute(c.Writer, verifyPageData{Message: msg})
		return
	}

	c.Status(http.StatusOK)
	_ = verifyPage.Execute(c.Writer, verifyPageData{OK: true, Email: v.Email})
}

// RegisterRoutesOnGroup registers the authenticated enterprise routes.
func (h *Handler) RegisterRoutesOnGroup(rg *gin.RouterGroup) {
	rg.POST("/setting_carpool_email", h.RequestVerification)
}

// RegisterPublicRoutes registers the email landing page, which is opened
// from a mail client and carries no JWT.
func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	r.GET("/verify_carpool_email.html", h.VerifyEmail)
}
