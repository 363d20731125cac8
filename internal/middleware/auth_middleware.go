package middleware

import (
	"net/http"
	"strings"

	"filepulse/internal/services"
	"filepulse/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		claims, err := service.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthOptional attaches the caller identity when a valid token is present.
// Absent and malformed tokens are treated identically: the request proceeds
// unauthenticated.
func AuthOptional(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.Next()
			return
		}
		claims, err := service.ParseToken(token)
		if err != nil {
			c.Next()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
