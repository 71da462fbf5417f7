package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/pkg/jwt"
	"github.com/sidestreets/core/internal/pkg/response"
)

const ContextKeyAdmin = "admin"

// Auth returns a middleware that enforces admin JWT authentication.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyAdmin, claims.Subject)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
