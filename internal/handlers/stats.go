package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nezhub/backend/internal/services"
	"github.com/nezhub/backend/pkg/response"
)

type StatsHandler struct {
	statisticsService *services.StatisticsService
}

func NewStatsHandler(statisticsService *services.StatisticsService) *StatsHandler {
	return &StatsHandler{statisticsService: statisticsService}
}

// PopularSkills returns project counts per skill
// GET /api/stats/skills?limit=10
func (h *StatsHandler) PopularSkills(c *gin.Context) {
	var q struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	counts, err := h.statisticsService.PopularSkills(c.Request.Context(), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, counts)
}

// StatusCounts returns project counts per status
// GET /api/stats/status
func (h *StatsHandler) StatusCounts(c *gin.Context) {
	counts, err := h.statisticsService.StatusCounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, counts)
}
