package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List returns paginated users
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.userService.List(middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "User")
	if !ok {
		return
	}
	user, err := h.userService.Get(middleware.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// UnassignedArtists lists artist users that have no artist profile yet
// GET /api/v1/users/unassigned_artists
func (h *UserHandler) UnassignedArtists(c *gin.Context) {
	users, err := h.userService.UnassignedArtists(middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req services.UserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Create(middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// PATCH /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "User")
	if !ok {
		return
	}
	var req services.UserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Update(middleware.CurrentUser(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "User")
	if !ok {
		return
	}
	if err := h.userService.Delete(middleware.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "User deleted successfully")
}
