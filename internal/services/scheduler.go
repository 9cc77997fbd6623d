package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nezhub/backend/internal/metrics"
	"github.com/nezhub/backend/internal/repository"
	"github.com/nezhub/backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	sweepLockName = "reconcile"
	sweepLockKey  = "sweep"
	sweepLockTTL  = 10 * time.Minute
	sweepTimeout  = 5 * time.Minute
)

// ReconcileScheduler runs ReconcileAll on a cron schedule. A lease in
// scheduler_locks keeps concurrent instances from sweeping at once.
type ReconcileScheduler struct {
	service *ReconcileService
	locks   repository.LockRepository
	spec    string
	owner   string

	cronScheduler *cron.Cron
	entryID       cron.EntryID
}

func NewReconcileScheduler(service *ReconcileService, locks repository.LockRepository, spec string) *ReconcileScheduler {
	host, _ := os.Hostname()
	return &ReconcileScheduler{
		service: service,
		locks:   locks,
		spec:    spec,
		owner:   fmt.Sprintf("%s/%s", host, uuid.NewString()[:8]),
	}
}

// Start registers the sweep. An empty spec disables it.
func (s *ReconcileScheduler) Start() error {
	if s.spec == "" {
		logger.Infof("[Reconcile] Periodic sweep disabled")
		return nil
	}

	s.cronScheduler = cron.New()
	entryID, err := s.cronScheduler.AddFunc(s.spec, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.spec, err)
	}
	s.entryID = entryID

	s.cronScheduler.Start()
	logger.Infof("[Reconcile] Scheduler started (cron: %s, owner: %s)", s.spec, s.owner)
	return nil
}

func (s *ReconcileScheduler) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// RunOnce performs one sweep if the lease can be taken. Reports whether
// the sweep ran.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	acquired, err := s.locks.Acquire(ctx, sweepLockName, sweepLockKey, s.owner, sweepLockTTL)
	if err != nil {
		logger.Errorf("[Reconcile] Failed to acquire sweep lock: %v", err)
		return false
	}
	if !acquired {
		logger.Debug().Str("owner", s.owner).Msg("sweep lock held elsewhere, skipping")
		return false
	}
	defer func() {
		if err := s.locks.Release(context.Background(), sweepLockName, sweepLockKey, s.owner); err != nil {
			logger.Warnf("[Reconcile] Failed to release sweep lock: %v", err)
		}
	}()

	start := time.Now()
	repaired, err := s.service.ReconcileAll(ctx)
	result := "ok"
	if err != nil {
		result = "error"
		logger.Errorf("[Reconcile] Sweep finished with errors after %v: %v", time.Since(start), err)
	}
	metrics.ReconcileRuns.WithLabelValues("sweep", result).Inc()
	logger.Infof("[Reconcile] Sweep repaired %d projects in %v", repaired, time.Since(start))
	return true
}
