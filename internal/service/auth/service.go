package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/repository"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/config"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/crypto"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/session"
)

// Service handles signup, login and session resolution.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.AppConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.AppConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

var (
	// ErrInvalidCredentials covers both unknown names and wrong
	// passwords. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrNameRequired       = errors.New("name is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// Signup registers a new user and issues a session token. Name
// uniqueness is not enforced; the earliest registration wins name
// lookups on login.
func (s Service) Signup(ctx context.Context, name, password, confirm string) (*domain.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrNameRequired
	}
	if password == "" {
		return nil, "", ErrPasswordRequired
	}
	if password != confirm {
		return nil, "", ErrPasswordMismatch
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login authenticates a user by name and password and returns a session
// token.
func (s Service) Login(ctx context.Context, name, password string) (*domain.User, string, error) {
	user, err := s.users.GetUserByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize resolves a session token to its user. Absent, malformed or
// expired tokens and tokens referencing deleted users all fail.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errors.New("token required")
	}
	claims, err := session.Parse(trimmed, s.cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s Service) issueToken(userID string) (string, error) {
	return session.GenerateToken(userID, s.cfg.SessionSecret, s.cfg.SessionTTL)
}
