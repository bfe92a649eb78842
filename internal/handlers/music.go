package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type MusicHandler struct {
	musicService *services.MusicService
}

func NewMusicHandler(musicService *services.MusicService) *MusicHandler {
	return &MusicHandler{musicService: musicService}
}

// List returns tracks, newest first
// GET /api/v1/musics
func (h *MusicHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.musicService.List(middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GET /api/v1/musics/all
func (h *MusicHandler) All(c *gin.Context) {
	musics, err := h.musicService.All(middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, musics)
}

// GET /api/v1/musics/:id
func (h *MusicHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Music")
	if !ok {
		return
	}
	music, err := h.musicService.Get(middleware.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, music)
}

// POST /api/v1/musics
func (h *MusicHandler) Create(c *gin.Context) {
	var req services.MusicRequest
	if !bindJSON(c, &req) {
		return
	}
	music, err := h.musicService.Create(middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, music)
}

// PATCH /api/v1/musics/:id
func (h *MusicHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Music")
	if !ok {
		return
	}
	var req services.MusicRequest
	if !bindJSON(c, &req) {
		return
	}
	music, err := h.musicService.Update(middleware.CurrentUser(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, music)
}

// DELETE /api/v1/musics/:id
func (h *MusicHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Music")
	if !ok {
		return
	}
	if err := h.musicService.Delete(middleware.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Music deleted successfully")
}
