package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProjectService struct {
	base
}

func NewProjectService(d Deps) *ProjectService {
	return &ProjectService{base: newBase(d, "project")}
}

type ProjectListRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Title          string   `json:"title" binding:"required,max=100"`
	Description    string   `json:"description" binding:"required,min=50"`
	Goals          []string `json:"goals"`
	RequiredSkills []string `json:"required_skills" binding:"required,min=1"`
}

// UpdateProjectRequest is a partial update: nil leaves a field unchanged, a
// non-nil empty value clears it.
type UpdateProjectRequest struct {
	Title          *string               `json:"title" binding:"omitempty,max=100"`
	Description    *string               `json:"description" binding:"omitempty,min=50"`
	Goals          *[]string             `json:"goals"`
	RequiredSkills *[]string             `json:"required_skills"`
	Status         *models.ProjectStatus `json:"status"`
}

// List returns projects newest first.
func (s *ProjectService) List(ctx context.Context, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	total, err := s.store.Projects().Count(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count projects")
	}

	projects, err := s.store.Projects().Find(ctx, repository.ProjectQuery{
		Sort:   repository.SortCreatedDesc,
		Limit:  req.PageSize,
		Offset: (req.Page - 1) * req.PageSize,
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to list projects")
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    nonNil(projects),
	}, nil
}

// GetByID reads through the projectDetails cache.
func (s *ProjectService) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var cached models.Project
	if s.cache.Get(ctx, cache.ProjectDetails, id, &cached) {
		return &cached, nil
	}

	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, cache.ProjectDetails, id, project)
	return project, nil
}

func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest, creatorID string) (*models.Project, error) {
	now := s.now()
	project := &models.Project{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		Goals:          datatypes.NewJSONSlice(orEmpty(req.Goals)),
		RequiredSkills: datatypes.NewJSONSlice(uniqueStrings(req.RequiredSkills)),
		Collaborators:  datatypes.NewJSONSlice([]string{}),
		Status:         models.ProjectStatusOpen,
		CreatorID:      creatorID,
		Votes:          0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Projects().Create(ctx, project); err != nil {
		return nil, apperr.Internal(err, "failed to create project")
	}

	s.cache.EvictAll(ctx, cache.TrendingProjects)
	s.log.Info().Str("project_id", project.ID).Str("creator_id", creatorID).Msg("project created")
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, id string, req *UpdateProjectRequest, callerID string) (*models.Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.CreatorID != callerID {
		return nil, apperr.Unauthorized("only the creator can update this project")
	}

	if req.Status != nil && !req.Status.Valid() {
		return nil, apperr.InvalidOperation("invalid project status %q", *req.Status)
	}

	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Goals != nil {
		project.Goals = datatypes.NewJSONSlice(orEmpty(*req.Goals))
	}
	if req.RequiredSkills != nil {
		project.RequiredSkills = datatypes.NewJSONSlice(uniqueStrings(*req.RequiredSkills))
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	project.UpdatedAt = s.now()

	err = s.store.Projects().Save(ctx, project)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("project %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to update project %s", id)
	}

	s.evictProject(ctx, id)
	return project, nil
}

// Delete removes the project, then its collaborations and votes.
func (s *ProjectService) Delete(ctx context.Context, id, callerID string) error {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return err
	}
	if project.CreatorID != callerID {
		return apperr.Unauthorized("only the creator can delete this project")
	}

	res := s.uow.Run(ctx,
		func(ctx context.Context, st repository.Store) error {
			err := st.Projects().Delete(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("project %s not found", id)
			}
			return err
		},
		func(ctx context.Context, st repository.Store) error {
			return purgeProjectRecords(ctx, st, id)
		},
	)
	if res.Outcome != OutcomeFailure {
		s.evictProject(ctx, id)
	}
	if err := s.settle("delete", id, res); err != nil {
		return err
	}

	s.log.Info().Str("project_id", id).Msg("project deleted")
	return nil
}

func (s *ProjectService) evictProject(ctx context.Context, id string) {
	s.cache.Evict(ctx, cache.ProjectDetails, id)
	s.cache.EvictAll(ctx, cache.TrendingProjects)
}

// purgeProjectRecords removes everything referencing projectID. Safe to repeat.
func purgeProjectRecords(ctx context.Context, st repository.Store, projectID string) error {
	if _, err := st.Collaborations().DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	_, err := st.Votes().DeleteByProject(ctx, projectID)
	return err
}

// uniqueStrings drops repeats, keeping first-seen order.
func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNil(projects []models.Project) []models.Project {
	if projects == nil {
		return []models.Project{}
	}
	return projects
}
