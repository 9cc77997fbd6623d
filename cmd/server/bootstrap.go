package main

import (
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/config"
	"github.com/nezhub/backend/internal/handlers"
	"github.com/nezhub/backend/internal/metrics"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
	"github.com/nezhub/backend/internal/services"
	"github.com/nezhub/backend/internal/utils"
	"github.com/nezhub/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	db           *gorm.DB
	cacheBackend cache.Backend
	taskQueue    services.TaskQueue
	worker       *services.Worker
	scheduler    *services.ReconcileScheduler
	corsOrigins  []string

	authHandler          *handlers.AuthHandler
	projectHandler       *handlers.ProjectHandler
	collaborationHandler *handlers.CollaborationHandler
	voteHandler          *handlers.VoteHandler
	searchHandler        *handlers.SearchHandler
	statsHandler         *handlers.StatsHandler
	healthHandler        *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, cache, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := metrics.RegisterDB(sqlDB, cfg.Database.Driver); err != nil {
			logger.Warn().Err(err).Msg("Failed to register database metrics")
		}
	}

	store := repository.NewGormStore(db)

	backend, err := cache.NewBackend(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}
	layer := cache.NewLayer(backend, cache.Options{
		KeyPrefix: cfg.Cache.KeyPrefix,
		Timeout:   cfg.Cache.Timeout,
		TTLs:      cfg.Cache.TTLs,
	})

	uow, err := services.NewUnitOfWork(cfg.UnitOfWork, store)
	if err != nil {
		logger.Fatalf("Failed to initialize unit of work: %v", err)
	}

	// Uses Redis if enabled, otherwise sync mode
	taskQueue := services.NewTaskQueue(cfg)

	deps := services.Deps{
		Store:      store,
		Cache:      layer,
		UnitOfWork: uow,
		Queue:      taskQueue,
	}
	reconcileService := services.NewReconcileService(deps)
	users := services.NewUserDirectory(deps)

	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(reconcileService.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(reconcileService.Process)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start worker: %v", err)
			}
		}
	}

	scheduler := services.NewReconcileScheduler(reconcileService, store.Locks(), cfg.Reconcile.Cron)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start reconcile scheduler: %v", err)
	}

	logger.Info().
		Str("unit_of_work", cfg.UnitOfWork.Mode).
		Str("cache", cfg.Cache.Backend).
		Bool("async_queue", taskQueue.IsAsync()).
		Msg("Services initialized")

	return &appServices{
		db:           db,
		cacheBackend: backend,
		taskQueue:    taskQueue,
		worker:       worker,
		scheduler:    scheduler,
		corsOrigins:  cfg.Server.CORSOrigins,

		authHandler:          handlers.NewAuthHandler(services.NewAuthService(deps, &cfg.JWT)),
		projectHandler:       handlers.NewProjectHandler(services.NewProjectService(deps), users),
		collaborationHandler: handlers.NewCollaborationHandler(services.NewCollaborationService(deps), users),
		voteHandler:          handlers.NewVoteHandler(services.NewVoteService(deps), users),
		searchHandler:        handlers.NewSearchHandler(services.NewSearchService(deps), users),
		statsHandler:         handlers.NewStatsHandler(services.NewStatisticsService(deps)),
		healthHandler:        handlers.NewHealthHandler(db, taskQueue),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Reconcile scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if err := s.cacheBackend.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close cache backend")
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
