package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/cache"
	"github.com/nezhub/backend/internal/config"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
	"github.com/nezhub/backend/pkg/logger"
	"gorm.io/gorm"
)

func init() {
	logger.InitWithWriter("error", io.Discard)
}

// recordingQueue captures enqueued tasks instead of running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []ReconcileTask
}

func (q *recordingQueue) Enqueue(task *ReconcileTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, *task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) Tasks() []ReconcileTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ReconcileTask(nil), q.tasks...)
}

var errInjected = errors.New("injected store failure")

// faultyStore fails the secondary project writes (vote counters and
// collaborator appends) and counts how often they were attempted.
type faultyStore struct {
	repository.Store
	err   error
	calls *int
}

func newFaultyStore(inner repository.Store, err error) *faultyStore {
	return &faultyStore{Store: inner, err: err, calls: new(int)}
}

func (s *faultyStore) Projects() repository.ProjectRepository {
	return &faultyProjects{ProjectRepository: s.Store.Projects(), store: s}
}

func (s *faultyStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(&faultyStore{Store: tx, err: s.err, calls: s.calls})
	})
}

type faultyProjects struct {
	repository.ProjectRepository
	store *faultyStore
}

func (p *faultyProjects) fail() error {
	*p.store.calls++
	return p.store.err
}

func (p *faultyProjects) RecountVotes(context.Context, string, time.Time) error {
	return p.fail()
}

func (p *faultyProjects) AddCollaborator(context.Context, string, string, time.Time) error {
	return p.fail()
}

// staleReadStore answers the pre-write existence checks as a request that
// read before a concurrent writer committed would: votes report voted and
// collaborations report absent. Writes go to the real store.
type staleReadStore struct {
	repository.Store
	voted bool
}

func (s *staleReadStore) Votes() repository.VoteRepository {
	return &staleVotes{VoteRepository: s.Store.Votes(), voted: s.voted}
}

func (s *staleReadStore) Collaborations() repository.CollaborationRepository {
	return &staleCollaborations{CollaborationRepository: s.Store.Collaborations()}
}

func (s *staleReadStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(&staleReadStore{Store: tx, voted: s.voted})
	})
}

type staleVotes struct {
	repository.VoteRepository
	voted bool
}

func (v *staleVotes) Exists(context.Context, string, string) (bool, error) {
	return v.voted, nil
}

type staleCollaborations struct {
	repository.CollaborationRepository
}

func (c *staleCollaborations) GetByProjectAndUser(context.Context, string, string) (*models.Collaboration, error) {
	return nil, repository.ErrNotFound
}

// lostAckStore applies RecountVotes and then reports a failure while
// failures is positive, like a commit whose reply never arrived.
type lostAckStore struct {
	repository.Store
	failures *int
}

func (s *lostAckStore) Projects() repository.ProjectRepository {
	return &lostAckProjects{ProjectRepository: s.Store.Projects(), failures: s.failures}
}

type lostAckProjects struct {
	repository.ProjectRepository
	failures *int
}

func (p *lostAckProjects) RecountVotes(ctx context.Context, id string, now time.Time) error {
	if err := p.ProjectRepository.RecountVotes(ctx, id, now); err != nil {
		return err
	}
	if *p.failures > 0 {
		*p.failures--
		return errors.New("connection reset after commit")
	}
	return nil
}

// stepClock advances one second per reading so creation order is strict.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type testEnv struct {
	db             *gorm.DB
	store          *repository.GormStore
	cache          *cache.Layer
	queue          *recordingQueue
	clock          *stepClock
	projects       *ProjectService
	collaborations *CollaborationService
	votes          *VoteService
	search         *SearchService
	stats          *StatisticsService
	reconcile      *ReconcileService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) *repository.GormStore {
	t.Helper()
	return repository.NewGormStore(newTestDB(t))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:    db,
		store: repository.NewGormStore(db),
		cache: cache.NewLayer(cache.NewMemoryBackend(), cache.Options{KeyPrefix: "test:"}),
		queue: &recordingQueue{},
		clock: &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	env.build(Deps{Store: env.store})
	return env
}

// build (re)creates the services over d, filling in the env's cache, queue
// and clock where d leaves them empty.
func (e *testEnv) build(d Deps) {
	if d.Cache == nil {
		d.Cache = e.cache
	}
	if d.Queue == nil {
		d.Queue = e.queue
	}
	if d.Now == nil {
		d.Now = e.clock.Now
	}
	e.projects = NewProjectService(d)
	e.collaborations = NewCollaborationService(d)
	e.votes = NewVoteService(d)
	e.search = NewSearchService(d)
	e.stats = NewStatisticsService(d)
	e.reconcile = NewReconcileService(Deps{Store: e.store, Cache: e.cache, Now: e.clock.Now})
}

func (e *testEnv) createProject(t *testing.T, creatorID string, skills ...string) *models.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), &CreateProjectRequest{
		Title:          "Distributed build cache",
		Description:    "A shared build cache for monorepos with remote execution support.",
		Goals:          []string{"ship v1"},
		RequiredSkills: skills,
	}, creatorID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return p
}

func (e *testEnv) loadProject(t *testing.T, id string) *models.Project {
	t.Helper()
	p, err := e.store.Projects().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("load project %s: %v", id, err)
	}
	return p
}

func (e *testEnv) setStatus(t *testing.T, p *models.Project, status models.ProjectStatus) {
	t.Helper()
	if _, err := e.projects.Update(context.Background(), p.ID, &UpdateProjectRequest{Status: &status}, p.CreatorID); err != nil {
		t.Fatalf("Update(status=%s) error = %v", status, err)
	}
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("error kind = %s, expected %s (err: %v)", got, want, err)
	}
}

// setVotes overwrites the stored counter without touching the vote rows.
func (e *testEnv) setVotes(t *testing.T, projectID string, votes int) {
	t.Helper()
	err := e.db.Model(&models.Project{}).Where("id = ?", projectID).UpdateColumn("votes", votes).Error
	if err != nil {
		t.Fatalf("set votes on %s: %v", projectID, err)
	}
}

// assertVotesConsistent checks the counter against the vote rows.
func assertVotesConsistent(t *testing.T, e *testEnv, projectID string) {
	t.Helper()
	p := e.loadProject(t, projectID)
	count, err := e.store.Votes().CountByProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("CountByProject() error = %v", err)
	}
	if int64(p.Votes) != count {
		t.Errorf("project votes = %d, vote rows = %d", p.Votes, count)
	}
	if p.Votes < 0 {
		t.Errorf("project votes = %d, expected non-negative", p.Votes)
	}
}
