package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/cryptox"
	"github.com/chatvault/chatvault/internal/server/auth"
	"github.com/chatvault/chatvault/internal/server/config"
	"github.com/google/uuid"
)

// Service implements registration and login. Login issues the signed
// session token that authenticates the principal on subsequent calls.
type Service struct {
	repo       Repository
	jwtSecret  []byte
	sessionTTL time.Duration
}

func NewService(repo Repository, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		jwtSecret:  []byte(cfg.SecretKey),
		sessionTTL: cfg.SessionTTL,
	}
}

// Register creates a new user with a bcrypt-hashed password. The plaintext
// password is never stored.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	user, err = s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// Login verifies the password and issues a session token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	if !user.IsActive || !cryptox.VerifyPassword(password, user.PasswordHash) {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.Username, s.jwtSecret, s.sessionTTL)
	if err != nil {
		return "", common.ErrorInternal
	}

	return token, nil
}

// Get returns the user's profile by username.
func (s *Service) Get(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}
