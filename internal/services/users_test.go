package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
)

// countingUsers counts user lookups.
type countingUsers struct {
	repository.UserRepository
	calls int
}

func (u *countingUsers) Get(ctx context.Context, id string) (*models.User, error) {
	u.calls++
	return u.UserRepository.Get(ctx, id)
}

type countingUserStore struct {
	repository.Store
	users *countingUsers
}

func (s *countingUserStore) Users() repository.UserRepository { return s.users }

// brokenUserStore fails every user lookup.
type brokenUserStore struct {
	repository.Store
}

func (s *brokenUserStore) Users() repository.UserRepository { return brokenUsers{} }

type brokenUsers struct {
	repository.UserRepository
}

func (brokenUsers) Get(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func seedUser(t *testing.T, env *testEnv, id, username string) {
	t.Helper()
	err := env.store.Users().Create(context.Background(), &models.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         models.RoleCreator,
		CreatedAt:    env.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func TestUserDirectory_Projects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env, "u-ada", "ada")
	a := env.createProject(t, "u-ada", "Go")
	b := env.createProject(t, "u-ada", "Rust")
	orphan := env.createProject(t, "u-gone", "Go")

	users := &countingUsers{UserRepository: env.store.Users()}
	dir := NewUserDirectory(Deps{Store: &countingUserStore{Store: env.store, users: users}})

	views := dir.Projects(ctx, []models.Project{*a, *b, *orphan})
	if len(views) != 3 {
		t.Fatalf("Projects() returned %d views, expected 3", len(views))
	}
	for _, v := range views[:2] {
		if v.CreatorUsername == nil || *v.CreatorUsername != "ada" {
			t.Errorf("CreatorUsername of %s = %v, expected ada", v.ID, v.CreatorUsername)
		}
	}
	if views[2].CreatorUsername != nil {
		t.Errorf("CreatorUsername of orphan = %q, expected nil", *views[2].CreatorUsername)
	}
	if users.calls != 2 {
		t.Errorf("user lookups = %d, expected 2", users.calls)
	}
}

func TestUserDirectory_Collaboration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env, "u-bo", "bo")
	p := env.createProject(t, "creator", "Go")
	c, err := env.collaborations.Join(ctx, p.ID, "u-bo")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	v := NewUserDirectory(Deps{Store: env.store}).Collaboration(ctx, c)
	if v.ID != c.ID {
		t.Errorf("ID = %q, expected %q", v.ID, c.ID)
	}
	if v.Username == nil || *v.Username != "bo" {
		t.Errorf("Username = %v, expected bo", v.Username)
	}
}

func TestUserDirectory_StoreErrorYieldsNil(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "creator", "Go")

	v := NewUserDirectory(Deps{Store: &brokenUserStore{Store: env.store}}).Project(context.Background(), p)
	if v.CreatorUsername != nil {
		t.Errorf("CreatorUsername = %q, expected nil", *v.CreatorUsername)
	}
	if v.ID != p.ID {
		t.Errorf("ID = %q, expected %q", v.ID, p.ID)
	}
}
