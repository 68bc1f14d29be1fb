package api

import (
	"strings"

	"library-service/internal/apperror"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// authMiddleware requires a valid bearer token and stores the caller's user
// id in the context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(c, apperror.NewUnauthorized("Unauthorized: No or invalid token provided"))
			return
		}

		user, err := h.auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
