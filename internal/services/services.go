package services

import (
	"context"
	"errors"
	"time"

	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/metrics"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
	"github.com/nezhub/backend/pkg/logger"
	"github.com/rs/zerolog"
)

// Deps are the collaborators shared by the domain services.
type Deps struct {
	Store      repository.Store
	Cache      cache.Cache
	UnitOfWork UnitOfWork
	Queue      TaskQueue
	// Now defaults to time.Now.
	Now func() time.Time
}

type base struct {
	store repository.Store
	cache cache.Cache
	uow   UnitOfWork
	queue TaskQueue
	now   func() time.Time
	log   zerolog.Logger
}

func newBase(d Deps, component string) base {
	b := base{
		store: d.Store,
		cache: d.Cache,
		uow:   d.UnitOfWork,
		queue: d.Queue,
		now:   d.Now,
		log:   logger.Component(component),
	}
	if b.cache == nil {
		b.cache = cache.NewLayer(cache.NoopBackend{}, cache.Options{})
	}
	if b.uow == nil {
		b.uow = NewTxUnitOfWork(d.Store)
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// getProject loads a project or fails with NotFound.
func (b *base) getProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := b.store.Projects().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("project %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load project %s", id)
	}
	return project, nil
}

// settle turns a WriteResult into the error returned to the caller. A
// partial failure is logged, counted and queued for reconciliation.
func (b *base) settle(op, projectID string, res WriteResult) error {
	metrics.WriteOutcomes.WithLabelValues(op, res.Outcome.String()).Inc()

	switch res.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomePartialFailure:
		b.log.Error().
			Err(res.Err).
			Str("operation", op).
			Str("project_id", projectID).
			Int("attempts", res.Attempts).
			Msg("secondary write failed after primary commit")
		b.scheduleReconcile(projectID, op)
		return apperr.Wrap(apperr.KindPartialFailure, res.Err,
			"%s on project %s was only partially applied; reconciliation scheduled", op, projectID)
	default:
		return storeError(res.Err, op)
	}
}

func (b *base) scheduleReconcile(projectID, reason string) {
	if b.queue == nil {
		b.log.Warn().Str("project_id", projectID).Msg("no task queue, reconcile not scheduled")
		return
	}
	if err := b.queue.Enqueue(&ReconcileTask{ProjectID: projectID, Reason: reason}); err != nil {
		b.log.Error().Err(err).Str("project_id", projectID).Msg("failed to enqueue reconcile task")
	}
}

// storeError passes typed errors through and wraps the rest as Internal.
func storeError(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "%s: record not found", op)
	}
	return apperr.Internal(err, "%s failed", op)
}
