package services

import (
	"context"
	"errors"

	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
)

// ProjectView is a project with its creator's username resolved. The
// username is null when the creator no longer exists.
type ProjectView struct {
	models.Project
	CreatorUsername *string `json:"creator_username"`
}

// CollaborationView is a collaboration with the requester's username resolved.
type CollaborationView struct {
	models.Collaboration
	Username *string `json:"username"`
}

type ProjectPageView struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []ProjectView `json:"items"`
}

// UserDirectory resolves user ids to usernames for API responses.
type UserDirectory struct {
	base
}

func NewUserDirectory(d Deps) *UserDirectory {
	return &UserDirectory{base: newBase(d, "users")}
}

// Project resolves the creator of a single project.
func (s *UserDirectory) Project(ctx context.Context, project *models.Project) *ProjectView {
	return &s.Projects(ctx, []models.Project{*project})[0]
}

// Projects resolves creators, looking each distinct user up once.
func (s *UserDirectory) Projects(ctx context.Context, projects []models.Project) []ProjectView {
	names := make(map[string]*string)
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, ProjectView{Project: p, CreatorUsername: s.lookup(ctx, names, p.CreatorID)})
	}
	return views
}

func (s *UserDirectory) Page(ctx context.Context, page *ProjectListResponse) *ProjectPageView {
	return &ProjectPageView{
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Items:    s.Projects(ctx, page.Items),
	}
}

func (s *UserDirectory) Collaboration(ctx context.Context, c *models.Collaboration) *CollaborationView {
	return &s.Collaborations(ctx, []models.Collaboration{*c})[0]
}

func (s *UserDirectory) Collaborations(ctx context.Context, list []models.Collaboration) []CollaborationView {
	names := make(map[string]*string)
	views := make([]CollaborationView, 0, len(list))
	for _, c := range list {
		views = append(views, CollaborationView{Collaboration: c, Username: s.lookup(ctx, names, c.UserID)})
	}
	return views
}

// lookup returns nil for unknown users. Store errors are logged and also
// yield nil so a response is never failed by name resolution.
func (s *UserDirectory) lookup(ctx context.Context, names map[string]*string, userID string) *string {
	if name, ok := names[userID]; ok {
		return name
	}

	var name *string
	user, err := s.store.Users().Get(ctx, userID)
	switch {
	case err == nil:
		name = &user.Username
	case !errors.Is(err, repository.ErrNotFound):
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to resolve username")
	}
	names[userID] = name
	return name
}
