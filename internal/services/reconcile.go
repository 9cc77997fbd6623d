package services

import (
	"context"
	"errors"
	"slices"

	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/metrics"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
)

// ReconcileService repairs the fields derived from other records: the vote
// counter, the collaborator list, and rows left behind by deleted projects.
type ReconcileService struct {
	base
}

func NewReconcileService(d Deps) *ReconcileService {
	return &ReconcileService{base: newBase(d, "reconcile")}
}

type ReconcileReport struct {
	ProjectID string `json:"project_id"`
	// Orphaned is set when the project no longer exists.
	Orphaned      bool     `json:"orphaned"`
	PurgedRows    int64    `json:"purged_rows"`
	VotesBefore   int      `json:"votes_before"`
	VotesAfter    int      `json:"votes_after"`
	Collaborators []string `json:"collaborators"`
	Repaired      bool     `json:"repaired"`
}

// Process handles a queued reconcile task.
func (s *ReconcileService) Process(ctx context.Context, task *ReconcileTask) error {
	report, err := s.Reconcile(ctx, task.ProjectID)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ReconcileRuns.WithLabelValues(task.Reason, result).Inc()
	if err != nil {
		return err
	}

	s.log.Info().
		Str("project_id", task.ProjectID).
		Str("reason", task.Reason).
		Bool("repaired", report.Repaired).
		Bool("orphaned", report.Orphaned).
		Msg("project reconciled")
	return nil
}

func (s *ReconcileService) Reconcile(ctx context.Context, projectID string) (*ReconcileReport, error) {
	report := &ReconcileReport{ProjectID: projectID}

	project, err := s.store.Projects().Get(ctx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.purgeOrphan(ctx, report)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load project %s", projectID)
	}

	count, err := s.store.Votes().CountByProject(ctx, projectID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count votes")
	}
	approved, err := s.store.Collaborations().Find(ctx, repository.CollaborationQuery{
		ProjectID: projectID,
		Status:    models.CollaborationApproved,
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to load approved collaborations")
	}

	collaborators := expectedCollaborators(project, approved)
	report.VotesBefore = project.Votes
	report.VotesAfter = int(count)
	report.Collaborators = collaborators

	if project.Votes == int(count) && slices.Equal(collaborators, []string(project.Collaborators)) {
		return report, nil
	}

	err = s.store.Projects().Repair(ctx, projectID, project.Revision, collaborators)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.purgeOrphan(ctx, report)
	case errors.Is(err, repository.ErrConflict):
		return nil, apperr.Wrap(apperr.KindInternal, err, "project %s changed during reconciliation", projectID)
	case err != nil:
		return nil, apperr.Internal(err, "failed to repair project %s", projectID)
	}

	report.Repaired = true
	s.cache.Evict(ctx, cache.ProjectDetails, projectID)
	s.cache.EvictAll(ctx, cache.TrendingProjects)

	s.log.Warn().
		Str("project_id", projectID).
		Int("votes_before", report.VotesBefore).
		Int("votes_after", report.VotesAfter).
		Strs("collaborators", collaborators).
		Msg("derived fields repaired")
	return report, nil
}

// ReconcileAll reconciles every project and every project id still
// referenced by a collaboration or vote.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := s.knownProjectIDs(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	repaired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		report, err := s.Reconcile(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if report.Repaired || report.PurgedRows > 0 {
			repaired++
		}
	}
	return repaired, errors.Join(errs...)
}

func (s *ReconcileService) purgeOrphan(ctx context.Context, report *ReconcileReport) (*ReconcileReport, error) {
	report.Orphaned = true

	collabs, err := s.store.Collaborations().DeleteByProject(ctx, report.ProjectID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to purge collaborations of %s", report.ProjectID)
	}
	votes, err := s.store.Votes().DeleteByProject(ctx, report.ProjectID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to purge votes of %s", report.ProjectID)
	}
	report.PurgedRows = collabs + votes

	if report.PurgedRows > 0 {
		s.log.Warn().Str("project_id", report.ProjectID).Int64("rows", report.PurgedRows).Msg("orphaned records purged")
	}
	return report, nil
}

func (s *ReconcileService) knownProjectIDs(ctx context.Context) ([]string, error) {
	sources := []func(context.Context) ([]string, error){
		s.store.Projects().IDs,
		s.store.Collaborations().ProjectIDs,
		s.store.Votes().ProjectIDs,
	}

	var ids []string
	for _, source := range sources {
		found, err := source(ctx)
		if err != nil {
			return nil, apperr.Internal(err, "failed to list project ids")
		}
		ids = append(ids, found...)
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// expectedCollaborators keeps the current order for users that are still
// approved and appends approved users that are missing. The creator is
// never a collaborator.
func expectedCollaborators(project *models.Project, approved []models.Collaboration) []string {
	allowed := make(map[string]bool, len(approved))
	for _, c := range approved {
		if c.UserID != project.CreatorID {
			allowed[c.UserID] = true
		}
	}

	out := make([]string, 0, len(allowed))
	seen := make(map[string]bool, len(allowed))
	for _, id := range project.Collaborators {
		if allowed[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, c := range approved {
		if allowed[c.UserID] && !seen[c.UserID] {
			seen[c.UserID] = true
			out = append(out, c.UserID)
		}
	}
	return out
}
