package api

import (
	"net/http"

	"library-service/internal/apperror"
	"library-service/internal/models"
	"library-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Meta    *models.PageMeta `json:"meta,omitempty"`
}

type errorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondPage(c *gin.Context, message string, data interface{}, meta models.PageMeta) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data, Meta: &meta})
}

// respondError writes err as the error envelope with the status of its kind
// and stops the handler chain. Internal causes are logged, never returned.
func respondError(c *gin.Context, err error) {
	appErr := apperror.As(err)
	if appErr.Kind == apperror.Internal {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(appErr.Kind.HTTPStatus(), errorResponse{
		Message: appErr.Message,
		Errors:  appErr.Details,
	})
}

func badRequest(c *gin.Context, message string, err error) {
	respondError(c, apperror.NewValidation(message, err.Error()))
}
