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

// CollaborationService drives PENDING → APPROVED | REJECTED.
type CollaborationService struct {
	base
}

func NewCollaborationService(d Deps) *CollaborationService {
	return &CollaborationService{base: newBase(d, "collaboration")}
}

// Join files a PENDING request. A previously rejected request for the same
// pair is reopened in place.
func (s *CollaborationService) Join(ctx context.Context, projectID, userID string) (*models.Collaboration, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != models.ProjectStatusOpen {
		return nil, apperr.ProjectNotOpen("project is not accepting collaborators")
	}
	if project.CreatorID == userID {
		return nil, apperr.InvalidOperation("you cannot join your own project")
	}

	existing, err := s.store.Collaborations().GetByProjectAndUser(ctx, projectID, userID)
	switch {
	case err == nil:
		return s.reopen(ctx, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Internal(err, "failed to check existing collaboration")
	}

	c := &models.Collaboration{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		UserID:      userID,
		Status:      models.CollaborationPending,
		RequestedAt: s.now(),
	}
	err = s.store.Collaborations().Create(ctx, c)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.AlreadyExists("a collaboration request for this project already exists")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to create collaboration")
	}

	s.log.Info().Str("project_id", projectID).Str("user_id", userID).Msg("collaboration requested")
	return c, nil
}

func (s *CollaborationService) reopen(ctx context.Context, existing *models.Collaboration) (*models.Collaboration, error) {
	switch existing.Status {
	case models.CollaborationPending:
		return nil, apperr.AlreadyExists("you already have a pending request for this project")
	case models.CollaborationApproved:
		return nil, apperr.AlreadyExists("you are already a collaborator on this project")
	}

	c := *existing
	c.Status = models.CollaborationPending
	c.RequestedAt = s.now()
	c.RespondedAt = nil

	err := s.store.Collaborations().Transition(ctx, &c, models.CollaborationRejected)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.AlreadyExists("a collaboration request for this project already exists")
	}
	if err != nil {
		return nil, storeError(err, "reopen collaboration")
	}

	s.log.Info().Str("project_id", c.ProjectID).Str("user_id", c.UserID).Msg("collaboration re-requested")
	return &c, nil
}

// Approve marks the request APPROVED and adds the user to the project's
// collaborators as one unit of work.
func (s *CollaborationService) Approve(ctx context.Context, collaborationID, callerID string) (*models.Collaboration, error) {
	c, project, err := s.loadPending(ctx, collaborationID, callerID, "approve")
	if err != nil {
		return nil, err
	}

	now := s.now()
	approved := *c
	approved.Status = models.CollaborationApproved
	approved.RespondedAt = &now

	res := s.uow.Run(ctx,
		func(ctx context.Context, st repository.Store) error {
			return transition(ctx, st, &approved, models.CollaborationPending)
		},
		func(ctx context.Context, st repository.Store) error {
			return st.Projects().AddCollaborator(ctx, project.ID, c.UserID, now)
		},
	)
	if res.Outcome != OutcomeFailure {
		s.cache.Evict(ctx, cache.ProjectDetails, project.ID)
	}
	if err := s.settle("approve", project.ID, res); err != nil {
		return nil, err
	}

	s.log.Info().Str("collaboration_id", c.ID).Str("project_id", project.ID).Msg("collaboration approved")
	return &approved, nil
}

func (s *CollaborationService) Reject(ctx context.Context, collaborationID, callerID string) (*models.Collaboration, error) {
	c, _, err := s.loadPending(ctx, collaborationID, callerID, "reject")
	if err != nil {
		return nil, err
	}

	now := s.now()
	rejected := *c
	rejected.Status = models.CollaborationRejected
	rejected.RespondedAt = &now

	if err := transition(ctx, s.store, &rejected, models.CollaborationPending); err != nil {
		return nil, storeError(err, "reject collaboration")
	}

	s.log.Info().Str("collaboration_id", c.ID).Msg("collaboration rejected")
	return &rejected, nil
}

// ListByProject returns requests oldest first, optionally filtered by status.
func (s *CollaborationService) ListByProject(ctx context.Context, projectID string, status *models.CollaborationStatus) ([]models.Collaboration, error) {
	return s.list(ctx, repository.CollaborationQuery{ProjectID: projectID}, status)
}

func (s *CollaborationService) ListByUser(ctx context.Context, userID string, status *models.CollaborationStatus) ([]models.Collaboration, error) {
	return s.list(ctx, repository.CollaborationQuery{UserID: userID}, status)
}

func (s *CollaborationService) list(ctx context.Context, q repository.CollaborationQuery, status *models.CollaborationStatus) ([]models.Collaboration, error) {
	if status != nil {
		if !status.Valid() {
			return nil, apperr.InvalidOperation("invalid collaboration status %q", *status)
		}
		q.Status = *status
	}

	list, err := s.store.Collaborations().Find(ctx, q)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list collaborations")
	}
	if list == nil {
		list = []models.Collaboration{}
	}
	return list, nil
}

// loadPending checks the preconditions shared by approve and reject.
func (s *CollaborationService) loadPending(ctx context.Context, collaborationID, callerID, verb string) (*models.Collaboration, *models.Project, error) {
	c, err := s.store.Collaborations().Get(ctx, collaborationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperr.NotFound("collaboration %s not found", collaborationID)
	}
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to load collaboration %s", collaborationID)
	}

	project, err := s.getProject(ctx, c.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project.CreatorID != callerID {
		return nil, nil, apperr.Unauthorized("only the creator can %s collaborators", verb)
	}
	if c.Status != models.CollaborationPending {
		return nil, nil, apperr.InvalidOperation("only PENDING requests can be resolved, this one is %s", c.Status)
	}
	return c, project, nil
}

// transition applies a guarded status rewrite, mapping a lost race to
// InvalidOperation.
func transition(ctx context.Context, st repository.Store, c *models.Collaboration, from models.CollaborationStatus) error {
	err := st.Collaborations().Transition(ctx, c, from)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return apperr.InvalidOperation("collaboration %s is no longer %s", c.ID, from)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("collaboration %s not found", c.ID)
	}
	return err
}
