package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/config"
	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	cookie      config.CookieConfig
}

func NewAuthHandler(authService *services.AuthService, userService *services.UserService, cookie config.CookieConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		cookie:      cookie,
	}
}

type LoginResponse struct {
	Message      string         `json:"message"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *models.User   `json:"user"`
	Artist       *models.Artist `json:"artist"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles user login
// POST /api/v1/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// A malformed body is just another failed login.
		req = services.LoginRequest{}
	}

	result, err := h.authService.Login(&req, middleware.ClientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setTokenCookies(c, &result.TokenPair)
	response.Success(c, LoginResponse{
		Message:      "Logged in successfully!",
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User,
		Artist:       result.User.Artist,
	})
}

// Refresh exchanges the refresh token cookie for a new token pair.
// Clients without cookies may send {"refresh_token": "..."} instead.
// POST /api/v1/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(middleware.RefreshTokenCookie)
	if raw == "" && c.Request.Body != nil && c.Request.Body != http.NoBody {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			raw = req.RefreshToken
		}
	}

	pair, err := h.authService.Rotate(raw, middleware.ClientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	response.Message(c, "Tokens refreshed successfully!")
}

// Logout revokes the presented refresh token and clears the session cookies.
// DELETE /api/v1/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	raw, _ := c.Cookie(middleware.RefreshTokenCookie)

	if err := h.authService.Logout(user.ID, raw, middleware.ClientInfo(c)); err != nil {
		response.Error(c, err)
		return
	}

	h.clearTokenCookies(c)
	response.Message(c, "Logged out successfully!")
}

// LogoutAll revokes every refresh token of the current user.
// DELETE /api/v1/logout_all
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.authService.LogoutAll(user.ID, middleware.ClientInfo(c)); err != nil {
		response.Error(c, err)
		return
	}

	h.clearTokenCookies(c)
	response.Message(c, "Logged out from all devices successfully!")
}

// Register signs up a new artist account
// POST /api/v1/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(&req, middleware.ClientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Profile returns the current user with its artist profile
// GET /api/v1/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	user, err := h.userService.Profile(middleware.CurrentUser(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// UpdateProfile lets the current user edit itself
// PATCH /api/v1/update_profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.ProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// ChangePassword replaces the password and ends every session of the user.
// POST /api/v1/change_password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.authService.ChangePassword(user.ID, &req, middleware.ClientInfo(c)); err != nil {
		response.Error(c, err)
		return
	}

	h.clearTokenCookies(c)
	response.Message(c, "Password changed successfully!")
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, pair *services.TokenPair) {
	h.setCookie(c, middleware.AccessTokenCookie, pair.AccessToken, pair.AccessTTL)
	h.setCookie(c, middleware.RefreshTokenCookie, pair.RefreshToken, pair.RefreshTTL)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	h.setCookie(c, middleware.AccessTokenCookie, "", -1)
	h.setCookie(c, middleware.RefreshTokenCookie, "", -1)
}

// setCookie writes an HttpOnly cookie living for ttl. A negative ttl deletes it.
func (h *AuthHandler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: h.cookie.SameSiteMode(),
	})
}
