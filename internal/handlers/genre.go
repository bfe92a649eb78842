package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type GenreHandler struct {
	genreService *services.GenreService
}

func NewGenreHandler(genreService *services.GenreService) *GenreHandler {
	return &GenreHandler{genreService: genreService}
}

// GET /api/v1/genres
func (h *GenreHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.genreService.List(middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// Search matches genre names against ?query=
// GET /api/v1/genres/search
func (h *GenreHandler) Search(c *gin.Context) {
	genres, err := h.genreService.Search(middleware.CurrentUser(c), c.Query("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, genres)
}

// GET /api/v1/genres/:id
func (h *GenreHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "Genre")
	if !ok {
		return
	}
	genre, err := h.genreService.Get(middleware.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, genre)
}

// POST /api/v1/genres
func (h *GenreHandler) Create(c *gin.Context) {
	var req services.GenreRequest
	if !bindJSON(c, &req) {
		return
	}
	genre, err := h.genreService.Create(middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, genre)
}

// PATCH /api/v1/genres/:id
func (h *GenreHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Genre")
	if !ok {
		return
	}
	var req services.GenreRequest
	if !bindJSON(c, &req) {
		return
	}
	genre, err := h.genreService.Update(middleware.CurrentUser(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, genre)
}

// DELETE /api/v1/genres/:id
func (h *GenreHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Genre")
	if !ok {
		return
	}
	if err := h.genreService.Delete(middleware.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Genre deleted successfully")
}
