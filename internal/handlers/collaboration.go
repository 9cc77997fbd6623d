package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nezhub/backend/internal/middleware"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/services"
	"github.com/nezhub/backend/pkg/response"
)

type CollaborationHandler struct {
	collaborationService *services.CollaborationService
	users                *services.UserDirectory
}

func NewCollaborationHandler(collaborationService *services.CollaborationService, users *services.UserDirectory) *CollaborationHandler {
	return &CollaborationHandler{collaborationService: collaborationService, users: users}
}

// Join requests to collaborate on a project
// POST /api/projects/:id/join
func (h *CollaborationHandler) Join(c *gin.Context) {
	collab, err := h.collaborationService.Join(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, h.users.Collaboration(c.Request.Context(), collab))
}

// Approve accepts a pending request
// PUT /api/collaborations/:id/approve
func (h *CollaborationHandler) Approve(c *gin.Context) {
	collab, err := h.collaborationService.Approve(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Collaboration(c.Request.Context(), collab))
}

// Reject declines a pending request
// PUT /api/collaborations/:id/reject
func (h *CollaborationHandler) Reject(c *gin.Context) {
	collab, err := h.collaborationService.Reject(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Collaboration(c.Request.Context(), collab))
}

// ListByProject returns the requests for a project
// GET /api/projects/:id/collaborations?status=PENDING
func (h *CollaborationHandler) ListByProject(c *gin.Context) {
	list, err := h.collaborationService.ListByProject(c.Request.Context(), c.Param("id"), statusQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Collaborations(c.Request.Context(), list))
}

// ListMine returns the caller's requests
// GET /api/collaborations/me?status=APPROVED
func (h *CollaborationHandler) ListMine(c *gin.Context) {
	list, err := h.collaborationService.ListByUser(c.Request.Context(), middleware.GetUserID(c), statusQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Collaborations(c.Request.Context(), list))
}

func statusQuery(c *gin.Context) *models.CollaborationStatus {
	raw, ok := c.GetQuery("status")
	if !ok || raw == "" {
		return nil
	}
	status := models.CollaborationStatus(raw)
	return &status
}
