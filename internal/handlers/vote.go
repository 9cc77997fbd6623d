package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nezhub/backend/internal/middleware"
	"github.com/nezhub/backend/internal/services"
	"github.com/nezhub/backend/pkg/response"
)

type VoteHandler struct {
	voteService *services.VoteService
	users       *services.UserDirectory
}

func NewVoteHandler(voteService *services.VoteService, users *services.UserDirectory) *VoteHandler {
	return &VoteHandler{voteService: voteService, users: users}
}

// Vote upvotes a project and returns it
// POST /api/projects/:id/vote
func (h *VoteHandler) Vote(c *gin.Context) {
	project, err := h.voteService.Vote(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Project(c.Request.Context(), project))
}

// Unvote withdraws the caller's vote
// DELETE /api/projects/:id/vote
func (h *VoteHandler) Unvote(c *gin.Context) {
	project, err := h.voteService.Unvote(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.users.Project(c.Request.Context(), project))
}

// HasVoted reports whether the caller voted for the project
// GET /api/projects/:id/vote
func (h *VoteHandler) HasVoted(c *gin.Context) {
	voted, err := h.voteService.HasVoted(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"voted": voted})
}
