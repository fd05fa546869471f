package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scribe/pkg/auth"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

const ContextSubject = "subject"

type AuthMiddleware struct {
	jwt    auth.JWTService
	render Renderer
}

func NewAuthMiddleware(jwt auth.JWTService, render Renderer) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:    jwt,
		render: render,
	}
}

// Authenticate verifies the bearer token and stores its subject in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.render(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.render(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		claims, err := m.jwt.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			m.render(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}
