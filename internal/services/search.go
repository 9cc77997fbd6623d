package services

import (
	"context"
	"strconv"

	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
)

const defaultTrendingLimit = 10

// SearchService composes project reads. Skill searches and trending lists
// are cached; everything else goes to the store.
type SearchService struct {
	base
}

func NewSearchService(d Deps) *SearchService {
	return &SearchService{base: newBase(d, "search")}
}

// BySkill is cached per skill and not invalidated by writes, so results may
// lag behind new projects until the entry expires.
func (s *SearchService) BySkill(ctx context.Context, skill string) ([]models.Project, error) {
	var cached []models.Project
	if s.cache.Get(ctx, cache.SearchBySkill, skill, &cached) {
		return nonNil(cached), nil
	}

	projects, err := s.find(ctx, repository.ProjectQuery{Skill: skill})
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, cache.SearchBySkill, skill, projects)
	return projects, nil
}

func (s *SearchService) ByStatus(ctx context.Context, status models.ProjectStatus) ([]models.Project, error) {
	if !status.Valid() {
		return nil, apperr.InvalidOperation("invalid project status %q", status)
	}
	return s.find(ctx, repository.ProjectQuery{Status: status})
}

func (s *SearchService) ByCreator(ctx context.Context, creatorID string) ([]models.Project, error) {
	return s.find(ctx, repository.ProjectQuery{CreatorID: creatorID})
}

func (s *SearchService) ByCreatorAndStatus(ctx context.Context, creatorID string, status models.ProjectStatus) ([]models.Project, error) {
	if !status.Valid() {
		return nil, apperr.InvalidOperation("invalid project status %q", status)
	}
	return s.find(ctx, repository.ProjectQuery{CreatorID: creatorID, Status: status})
}

// WithFilters dispatches on which filters are present. Combined filters
// are never cached.
func (s *SearchService) WithFilters(ctx context.Context, skill *string, status *models.ProjectStatus) ([]models.Project, error) {
	switch {
	case skill != nil && status != nil:
		if !status.Valid() {
			return nil, apperr.InvalidOperation("invalid project status %q", *status)
		}
		return s.find(ctx, repository.ProjectQuery{Skill: *skill, Status: *status})
	case skill != nil:
		return s.BySkill(ctx, *skill)
	case status != nil:
		return s.ByStatus(ctx, *status)
	default:
		return s.find(ctx, repository.ProjectQuery{})
	}
}

// Trending returns OPEN projects by votes descending, ties broken by
// createdAt then id ascending. Cached per limit.
func (s *SearchService) Trending(ctx context.Context, limit int) ([]models.Project, error) {
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	key := strconv.Itoa(limit)

	var cached []models.Project
	if s.cache.Get(ctx, cache.TrendingProjects, key, &cached) {
		return nonNil(cached), nil
	}

	projects, err := s.find(ctx, repository.ProjectQuery{
		Status: models.ProjectStatusOpen,
		Sort:   repository.SortVotesDesc,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, cache.TrendingProjects, key, projects)
	return projects, nil
}

func (s *SearchService) find(ctx context.Context, q repository.ProjectQuery) ([]models.Project, error) {
	projects, err := s.store.Projects().Find(ctx, q)
	if err != nil {
		return nil, apperr.Internal(err, "failed to search projects")
	}
	return nonNil(projects), nil
}
