package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
)

// ErrUnauthorized is returned for bad credentials and unusable refresh tokens.
var ErrUnauthorized = errors.New("unauthorized")

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	User   *domain.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// Service registers customers and exchanges credentials for token pairs.
type Service struct {
	users  repository.UserRepository
	issuer *Issuer
	logger *slog.Logger
	now    func() time.Time
}

func NewService(users repository.UserRepository, issuer *Issuer, logger *slog.Logger) *Service {
	return &Service{users: users, issuer: issuer, logger: logger, now: time.Now}
}

// Register creates a customer account. Admins are provisioned out of band.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, domain.BadRequest("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           repository.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, domain.InvalidState("email is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, in.Password) {
		s.logger.WarnContext(ctx, "login failed", "user_id", user.ID)
		return nil, ErrUnauthorized
	}
	return s.session(user)
}

// Refresh issues a new pair for a valid refresh token. The user is re-read so a
// role change takes effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.session(user)
}

func (s *Service) session(user *domain.User) (*Session, error) {
	pair, err := s.issuer.IssuePair(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}
