package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
)

// VoteService keeps Project.Votes equal to the number of Vote rows. The
// counter is always recounted from the rows, so a retried update cannot
// apply twice.
type VoteService struct {
	base
}

func NewVoteService(d Deps) *VoteService {
	return &VoteService{base: newBase(d, "vote")}
}

// Vote records an upvote and returns the updated project.
func (s *VoteService) Vote(ctx context.Context, projectID, userID string) (*models.Project, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == models.ProjectStatusClosed {
		return nil, apperr.InvalidOperation("cannot vote on a closed project")
	}

	voted, err := s.store.Votes().Exists(ctx, projectID, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check existing vote")
	}
	if voted {
		return nil, apperr.AlreadyExists("you have already voted for this project")
	}

	now := s.now()
	res := s.uow.Run(ctx,
		func(ctx context.Context, st repository.Store) error {
			err := st.Votes().Create(ctx, &models.Vote{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				UserID:    userID,
				CreatedAt: now,
			})
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.AlreadyExists("you have already voted for this project")
			}
			return err
		},
		func(ctx context.Context, st repository.Store) error {
			return st.Projects().RecountVotes(ctx, projectID, now)
		},
	)

	return s.finish(ctx, "vote", projectID, res)
}

// Unvote withdraws a vote. Allowed on closed projects.
func (s *VoteService) Unvote(ctx context.Context, projectID, userID string) (*models.Project, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	voted, err := s.store.Votes().Exists(ctx, projectID, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check existing vote")
	}
	if !voted {
		return nil, apperr.InvalidOperation("you have not voted for this project")
	}

	now := s.now()
	res := s.uow.Run(ctx,
		func(ctx context.Context, st repository.Store) error {
			err := st.Votes().Delete(ctx, projectID, userID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.InvalidOperation("you have not voted for this project")
			}
			return err
		},
		func(ctx context.Context, st repository.Store) error {
			return st.Projects().RecountVotes(ctx, projectID, now)
		},
	)

	return s.finish(ctx, "unvote", projectID, res)
}

func (s *VoteService) HasVoted(ctx context.Context, projectID, userID string) (bool, error) {
	voted, err := s.store.Votes().Exists(ctx, projectID, userID)
	if err != nil {
		return false, apperr.Internal(err, "failed to check vote")
	}
	return voted, nil
}

func (s *VoteService) finish(ctx context.Context, op, projectID string, res WriteResult) (*models.Project, error) {
	if res.Outcome != OutcomeFailure {
		s.cache.Evict(ctx, cache.ProjectDetails, projectID)
		s.cache.EvictAll(ctx, cache.TrendingProjects)
	}
	if err := s.settle(op, projectID, res); err != nil {
		return nil, err
	}
	return s.getProject(ctx, projectID)
}
