package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/logger"
	"github.com/huangang/soundvault/pkg/response"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	ContextCurrentUser = "current_user"
)

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(accessToken string) (*models.User, error)
}

// SessionRequired rejects requests without a valid access token and stores
// the authenticated user in the context for CurrentUser.
func SessionRequired(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			response.Error(c, response.NewAuthenticationError("token", "Access token is missing"))
			return
		}

		user, err := authn.Authenticate(token)
		if err != nil {
			if !errors.Is(err, services.ErrInvalidAccessToken) {
				response.Error(c, err)
				return
			}
			response.Error(c, response.NewAuthenticationError("token", "Invalid or expired access token"))
			return
		}

		c.Set(ContextCurrentUser, user)
		c.Set(logger.UserIDKey, user.ID)
		c.Next()
	}
}

// AccessToken reads the access_token cookie, falling back to a Bearer header.
func AccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentUser returns the user stored by SessionRequired, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(ContextCurrentUser); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// ClientInfo describes the caller for token records and audit entries.
func ClientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: c.GetString(logger.RequestIDKey),
	}
}
