package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

// pathID parses the :id parameter. A malformed id answers 404 for entity.
func pathID(c *gin.Context, entity string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.Error(c, response.NewNotFound(entity))
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes the request body into req, answering 422 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BindError(c, err)
		return false
	}
	return true
}

func pageRequest(c *gin.Context) (services.PageRequest, bool) {
	var req services.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return req, false
	}
	return req, true
}
