package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/services"
	"github.com/nezhub/backend/pkg/response"
)

type SearchHandler struct {
	searchService *services.SearchService
	users         *services.UserDirectory
}

func NewSearchHandler(searchService *services.SearchService, users *services.UserDirectory) *SearchHandler {
	return &SearchHandler{searchService: searchService, users: users}
}

type searchQuery struct {
	Skill  *string               `form:"skill"`
	Status *models.ProjectStatus `form:"status"`
}

// Search filters projects by skill and/or status
// GET /api/projects/search?skill=Go&status=OPEN
func (h *SearchHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	projects, err := h.searchService.WithFilters(c.Request.Context(), q.Skill, q.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Projects(c.Request.Context(), projects))
}

// Trending returns the most voted open projects
// GET /api/projects/trending?limit=10
func (h *SearchHandler) Trending(c *gin.Context) {
	var q struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	projects, err := h.searchService.Trending(c.Request.Context(), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Projects(c.Request.Context(), projects))
}

// ByCreator lists a user's projects, optionally by status
// GET /api/users/:id/projects?status=OPEN
func (h *SearchHandler) ByCreator(c *gin.Context) {
	var (
		projects []models.Project
		err      error
	)
	if raw := c.Query("status"); raw != "" {
		projects, err = h.searchService.ByCreatorAndStatus(c.Request.Context(), c.Param("id"), models.ProjectStatus(raw))
	} else {
		projects, err = h.searchService.ByCreator(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Projects(c.Request.Context(), projects))
}
