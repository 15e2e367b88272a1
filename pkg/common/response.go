package common

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transitlab/tsp-api/pkg/logger"
	"go.uber.org/zap"
)

// Response is the platform API envelope. Every JSON endpoint answers with
// either {"result":"success","data":{..}} or
// {"result":"fail","error":{"code":..,"msg":..}}.
type Response struct {
	Result string      `json:"result"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains the stable business code and user-facing message.
type ErrorInfo struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Result: "success",
		Data:   data,
	})
}

// ErrorResponse sends a failure response with an explicit code
func ErrorResponse(c *gin.Context, httpStatus, code int, msg string) {
	c.JSON(httpStatus, Response{
		Result: "fail",
		Error:  &ErrorInfo{Code: code, Msg: msg},
	})
}

// AppErrorResponse renders an AppError through the envelope
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.HTTPStatus, Response{
		Result: "fail",
		Error:  &ErrorInfo{Code: err.Code, Msg: err.Message},
	})
}

// HandleError renders any error: AppErrors keep their code and status,
// everything else is logged with the request context and returned as an
// opaque internal failure.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := AsAppError(err); ok {
		AppErrorResponse(c, appErr)
		return
	}

	logger.WithContext(c.Request.Context()).Error("unhandled error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	ErrorResponse(c, http.StatusInternalServerError, CodeInternalError, "internal server error")
}

// HealthCheck returns a liveness handler for the given service
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": version,
		})
	}
}
