package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type AlbumHandler struct {
	albumService *services.AlbumService
}

func NewAlbumHandler(albumService *services.AlbumService) *AlbumHandler {
	return &AlbumHandler{albumService: albumService}
}

// List returns albums, newest release first
// GET /api/v1/albums
func (h *AlbumHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.albumService.List(middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GET /api/v1/albums/all
func (h *AlbumHandler) All(c *gin.Context) {
	albums, err := h.albumService.All(middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, albums)
}

// GET /api/v1/albums/:id
func (h *AlbumHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Album")
	if !ok {
		return
	}
	album, err := h.albumService.Get(middleware.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, album)
}

// POST /api/v1/albums
func (h *AlbumHandler) Create(c *gin.Context) {
	var req services.AlbumRequest
	if !bindJSON(c, &req) {
		return
	}
	album, err := h.albumService.Create(middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, album)
}

// PATCH /api/v1/albums/:id
func (h *AlbumHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Album")
	if !ok {
		return
	}
	var req services.AlbumRequest
	if !bindJSON(c, &req) {
		return
	}
	album, err := h.albumService.Update(middleware.CurrentUser(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, album)
}

// DELETE /api/v1/albums/:id
func (h *AlbumHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Album")
	if !ok {
		return
	}
	if err := h.albumService.Delete(middleware.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Album deleted successfully")
}
