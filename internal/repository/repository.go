// Package repository is the entity store: durable keyed records for users,
// projects, collaborations and votes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nezhub/backend/internal/models"
)

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrConflict indicates a conditional write lost a race with another writer.
	ErrConflict = errors.New("repository: concurrent modification")
)

// Store groups the per-kind repositories. Transaction runs fn against a
// store bound to a single database transaction.
type Store interface {
	Users() UserRepository
	Projects() ProjectRepository
	Collaborations() CollaborationRepository
	Votes() VoteRepository
	Locks() LockRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type ProjectSort int

const (
	SortCreatedDesc ProjectSort = iota
	// SortVotesDesc orders by votes descending, then createdAt and id ascending.
	SortVotesDesc
)

// ProjectQuery filters projects. Zero-valued fields do not filter.
type ProjectQuery struct {
	Skill     string
	Status    models.ProjectStatus
	CreatorID string
	Sort      ProjectSort
	Limit     int
	Offset    int
}

type StatusCount struct {
	Status models.ProjectStatus `json:"status"`
	Count  int64                `json:"count"`
}

type SkillCount struct {
	Skill string `json:"skill"`
	Count int64  `json:"count"`
}

type ProjectRepository interface {
	Get(ctx context.Context, id string) (*models.Project, error)
	Find(ctx context.Context, q ProjectQuery) ([]models.Project, error)
	Count(ctx context.Context) (int64, error)
	IDs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, project *models.Project) error
	// Save rewrites the creator-editable fields and updatedAt.
	Save(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	// RecountVotes sets the counter to the number of Vote rows and bumps
	// updatedAt. Safe to repeat.
	RecountVotes(ctx context.Context, id string, now time.Time) error
	// AddCollaborator appends userID unless already present.
	AddCollaborator(ctx context.Context, id, userID string, now time.Time) error
	// Repair recounts votes from the Vote rows and replaces collaborators,
	// provided the project is still at revision. Returns ErrConflict otherwise.
	Repair(ctx context.Context, id string, revision int64, collaborators []string) error
	StatusCounts(ctx context.Context) ([]StatusCount, error)
	SkillCounts(ctx context.Context) ([]SkillCount, error)
}

// CollaborationQuery filters collaborations. Zero-valued fields do not filter.
type CollaborationQuery struct {
	ProjectID string
	UserID    string
	Status    models.CollaborationStatus
}

type CollaborationRepository interface {
	Get(ctx context.Context, id string) (*models.Collaboration, error)
	GetByProjectAndUser(ctx context.Context, projectID, userID string) (*models.Collaboration, error)
	Find(ctx context.Context, q CollaborationQuery) ([]models.Collaboration, error)
	Create(ctx context.Context, c *models.Collaboration) error
	// Transition rewrites every field of c provided the stored status is
	// still from. Returns ErrConflict otherwise.
	Transition(ctx context.Context, c *models.Collaboration, from models.CollaborationStatus) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
	ProjectIDs(ctx context.Context) ([]string, error)
}

type VoteRepository interface {
	Exists(ctx context.Context, projectID, userID string) (bool, error)
	Create(ctx context.Context, vote *models.Vote) error
	// Delete removes the vote of userID. Returns ErrNotFound if none existed.
	Delete(ctx context.Context, projectID, userID string) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
	ProjectIDs(ctx context.Context) ([]string, error)
}

// LockRepository hands out named leases backed by the scheduler_locks table.
type LockRepository interface {
	Acquire(ctx context.Context, name, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, key, owner string) error
}
