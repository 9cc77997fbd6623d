package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/config"
	"github.com/nezhub/backend/internal/models"
	"github.com/nezhub/backend/internal/repository"
	"github.com/nezhub/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	base
	jwtConfig *config.JWTConfig
}

func NewAuthService(d Deps, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{base: newBase(d, "auth"), jwtConfig: jwtCfg}
}

type RegisterRequest struct {
	Username string      `json:"username" binding:"required,max=100"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8,max=72"`
	Role     models.Role `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token    string      `json:"token"`
	ExpireAt time.Time   `json:"expire_at"`
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if !req.Role.Valid() {
		return nil, apperr.InvalidOperation("invalid role %q", req.Role)
	}

	_, err := s.store.Users().GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, apperr.AlreadyExists("email is already registered: %s", req.Email)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err, "failed to check email")
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.InvalidOperation("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    s.now(),
	}
	err = s.store.Users().Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.AlreadyExists("username or email is already registered")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to create user")
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return s.issue(user)
}

// Login fails with the same Unauthorized error for an unknown email and a
// wrong password.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	return s.issue(user)
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user %s", id)
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}

	token, err := utils.GenerateToken(user.ID, user.Username, string(user.Role), hours)
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue token")
	}

	return &AuthResponse{
		Token:    token,
		ExpireAt: s.now().Add(time.Duration(hours) * time.Hour),
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}
