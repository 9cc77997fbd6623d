package services

import (
	"context"
	"strconv"

	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
)

const (
	defaultSkillStatsLimit = 10
	statusStatsKey         = "all"
)

type StatisticsService struct {
	base
}

func NewStatisticsService(d Deps) *StatisticsService {
	return &StatisticsService{base: newBase(d, "statistics")}
}

// PopularSkills counts projects per required skill, most used first.
func (s *StatisticsService) PopularSkills(ctx context.Context, limit int) ([]repository.SkillCount, error) {
	if limit <= 0 {
		limit = defaultSkillStatsLimit
	}
	key := strconv.Itoa(limit)

	var cached []repository.SkillCount
	if s.cache.Get(ctx, cache.SkillStats, key, &cached) {
		return cached, nil
	}

	counts, err := s.store.Projects().SkillCounts(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count skills")
	}
	if len(counts) > limit {
		counts = counts[:limit]
	}

	s.cache.Put(ctx, cache.SkillStats, key, counts)
	return counts, nil
}

// StatusCounts reports how many projects are in each status, including
// statuses with no projects.
func (s *StatisticsService) StatusCounts(ctx context.Context) ([]repository.StatusCount, error) {
	var cached []repository.StatusCount
	if s.cache.Get(ctx, cache.StatusStats, statusStatsKey, &cached) {
		return cached, nil
	}

	rows, err := s.store.Projects().StatusCounts(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count projects by status")
	}

	byStatus := make(map[models.ProjectStatus]int64, len(rows))
	for _, row := range rows {
		byStatus[row.Status] = row.Count
	}
	counts := make([]repository.StatusCount, 0, len(models.ProjectStatuses))
	for _, status := range models.ProjectStatuses {
		counts = append(counts, repository.StatusCount{Status: status, Count: byStatus[status]})
	}

	s.cache.Put(ctx, cache.StatusStats, statusStatsKey, counts)
	return counts, nil
}
