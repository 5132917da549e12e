package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/api"
)

// Define a custom type for context keys
type contextKey string

// UserContextKey is the key used to store the user id in the request context
const UserContextKey contextKey = "user_id"

type AuthMiddleware struct {
	service *Service
	log     *zap.Logger
}

func NewAuthMiddleware(service *Service, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		service: service,
		log:     log,
	}
}

// RequireAccessToken rejects requests without a valid access token and
// records the token's user id on the request.
func (m *AuthMiddleware) RequireAccessToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			api.Error(c, http.StatusUnauthorized, "Authorization token required")
			return
		}

		claims, err := m.service.ValidateAccessToken(raw)
		if err != nil {
			m.log.Warn("authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			status, message := classifyError(err)
			api.Error(c, status, message)
			return
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), UserContextKey, claims.UserID))
		c.Next()
	}
}

// GetUserFromContext returns the user id stored by RequireAccessToken.
func GetUserFromContext(ctx context.Context) (uint, error) {
	userID, ok := ctx.Value(UserContextKey).(uint)
	if !ok {
		return 0, errors.New("user not found in context")
	}
	return userID, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
