package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type ArtistHandler struct {
	artistService *services.ArtistService
}

func NewArtistHandler(artistService *services.ArtistService) *ArtistHandler {
	return &ArtistHandler{artistService: artistService}
}

// List returns the artists the current user manages, paginated
// GET /api/v1/artists
func (h *ArtistHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.artistService.List(middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// GET /api/v1/artists/all
func (h *ArtistHandler) All(c *gin.Context) {
	artists, err := h.artistService.All(middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, artists)
}

// GET /api/v1/artists/my_artists
func (h *ArtistHandler) MyArtists(c *gin.Context) {
	artists, err := h.artistService.MyArtists(middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, artists)
}

// GET /api/v1/artists/:id/public_show
func (h *ArtistHandler) PublicShow(c *gin.Context) {
	id, ok := pathID(c, "Artist")
	if !ok {
		return
	}
	artist, err := h.artistService.PublicShow(middleware.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, artist)
}

// POST /api/v1/artists
func (h *ArtistHandler) Create(c *gin.Context) {
	var req services.ArtistRequest
	if !bindJSON(c, &req) {
		return
	}
	artist, err := h.artistService.Create(middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, artist)
}

// PATCH /api/v1/artists/:id
func (h *ArtistHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "Artist")
	if !ok {
		return
	}
	var req services.ArtistRequest
	if !bindJSON(c, &req) {
		return
	}
	artist, err := h.artistService.Update(middleware.CurrentUser(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, artist)
}

// DELETE /api/v1/artists/:id
func (h *ArtistHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "Artist")
	if !ok {
		return
	}
	if err := h.artistService.Delete(middleware.CurrentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Artist deleted successfully")
}

// AssignManager puts an artist under another manager
// PATCH /api/v1/artists/:id/assign_manager
func (h *ArtistHandler) AssignManager(c *gin.Context) {
	id, ok := pathID(c, "Artist")
	if !ok {
		return
	}
	var req services.AssignManagerRequest
	if !bindJSON(c, &req) {
		return
	}
	artist, err := h.artistService.AssignManager(middleware.CurrentUser(c), id, req.ManagerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Manager assigned successfully", "artist": artist})
}

// CSVExport downloads the listable artists as CSV
// GET /api/v1/artists/csv_export
func (h *ArtistHandler) CSVExport(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.artistService.ExportCSV(middleware.CurrentUser(c), &buf); err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("artists-%s.csv", time.Now().Format(time.DateOnly))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// CSVImport reads a multipart "file" upload in the export layout
// POST /api/v1/artists/csv_import
func (h *ArtistHandler) CSVImport(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if err := services.Authorize(actor, services.ActionCSVImport, services.Resource{Kind: services.KindArtist}); err != nil {
		response.Error(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, response.NewValidationError("file", "can't be blank"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	result, err := h.artistService.ImportCSV(actor, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
