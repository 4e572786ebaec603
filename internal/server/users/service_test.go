package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/cryptox"
	"github.com/chatvault/chatvault/internal/server/auth"
	"github.com/chatvault/chatvault/internal/server/config"
)

// ---- fakes ----

type fakeRepo struct {
	created   *User
	createErr error

	user   *User
	getErr error
}

func (f *fakeRepo) Create(ctx context.Context, user *User) (*User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = user
	user.IsActive = true
	return user, nil
}

func (f *fakeRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return f.user, f.getErr
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = "test-secret"
	c.SessionTTL = time.Hour
	return c
}

func TestRegister_HashesPassword(t *testing.T) {
	repo := &fakeRepo{}
	s := NewService(repo, testConfig())

	user, err := s.Register(context.Background(), "alice", "alice@example.com", "pw123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated id")
	}
	if user.PasswordHash == "pw123" || user.PasswordHash == "" {
		t.Fatalf("password not hashed: %q", user.PasswordHash)
	}
	if !cryptox.VerifyPassword("pw123", user.PasswordHash) {
		t.Fatalf("stored hash does not verify")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := &fakeRepo{createErr: common.ErrorAlreadyExists}
	s := NewService(repo, testConfig())

	_, err := s.Register(context.Background(), "alice", "a@b.c", "pw")
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want ErrorAlreadyExists, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	hash, err := cryptox.HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	repo := &fakeRepo{user: &User{ID: "id-1", Username: "alice", PasswordHash: hash, IsActive: true}}
	s := NewService(repo, testConfig())

	token, err := s.Login(context.Background(), "alice", "pw123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	username, err := auth.GetUsernameFromToken(token, []byte("test-secret"))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if username != "alice" {
		t.Fatalf("token subject mismatch: got %q", username)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, _ := cryptox.HashPassword("right")
	repo := &fakeRepo{user: &User{Username: "alice", PasswordHash: hash, IsActive: true}}
	s := NewService(repo, testConfig())

	_, err := s.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := &fakeRepo{getErr: common.ErrorNotFound}
	s := NewService(repo, testConfig())

	_, err := s.Login(context.Background(), "ghost", "pw")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	hash, _ := cryptox.HashPassword("pw")
	repo := &fakeRepo{user: &User{Username: "alice", PasswordHash: hash, IsActive: false}}
	s := NewService(repo, testConfig())

	_, err := s.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}
