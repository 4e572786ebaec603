package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/chatvault/chatvault/internal/common"
)

// stubVault records which lookups were performed.
type stubVault struct {
	byID    map[string]string // credentialID -> plaintext
	def     string
	hasDef  bool
	defErr  error
	byIDErr error

	byIDCalls int
	defCalls  int
}

func (s *stubVault) ResolveByID(ctx context.Context, userID, id string) (string, error) {
	s.byIDCalls++
	if s.byIDErr != nil {
		return "", s.byIDErr
	}
	plaintext, ok := s.byID[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return plaintext, nil
}

func (s *stubVault) ResolveDefault(ctx context.Context, userID string) (string, bool, error) {
	s.defCalls++
	return s.def, s.hasDef, s.defErr
}

func TestResolve_DemoModeUsesFallbackWithoutVault(t *testing.T) {
	vault := &stubVault{byID: map[string]string{"k1": "sk-user"}, def: "sk-user", hasDef: true}
	r := New(vault, "sk-shared")

	// Demo wins over both the explicit id and the stored default.
	got, err := r.Resolve(context.Background(), Request{UserID: "u1", CredentialID: "k1", DemoMode: true})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "sk-shared" {
		t.Fatalf("demo mode must use fallback, got %q", got)
	}
	if vault.byIDCalls != 0 || vault.defCalls != 0 {
		t.Fatalf("demo mode must not consult the vault (byID=%d default=%d)", vault.byIDCalls, vault.defCalls)
	}
}

func TestResolve_DemoModeNoFallback(t *testing.T) {
	vault := &stubVault{byID: map[string]string{"k1": "sk-user"}, def: "sk-user", hasDef: true}
	r := New(vault, "")

	_, err := r.Resolve(context.Background(), Request{UserID: "u1", DemoMode: true})
	if !errors.Is(err, common.ErrDemoUnavailable) {
		t.Fatalf("want ErrDemoUnavailable regardless of stored credentials, got %v", err)
	}
}

func TestResolve_ExplicitIDWinsOverDefault(t *testing.T) {
	vault := &stubVault{byID: map[string]string{"k2": "sk-explicit"}, def: "sk-default", hasDef: true}
	r := New(vault, "sk-shared")

	got, err := r.Resolve(context.Background(), Request{UserID: "u1", CredentialID: "k2"})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "sk-explicit" {
		t.Fatalf("explicit id must win, got %q", got)
	}
	if vault.defCalls != 0 {
		t.Fatalf("default lookup must not run when an explicit id is present")
	}
}

func TestResolve_ExplicitIDNotFound(t *testing.T) {
	vault := &stubVault{byID: map[string]string{}, def: "sk-default", hasDef: true}
	r := New(vault, "sk-shared")

	// A dangling explicit reference is an error, not a silent fall-through
	// to the default or the fallback.
	_, err := r.Resolve(context.Background(), Request{UserID: "u1", CredentialID: "gone"})
	if !errors.Is(err, common.ErrCredentialNotFound) {
		t.Fatalf("want ErrCredentialNotFound, got %v", err)
	}
}

func TestResolve_StoredDefaultWinsOverFallback(t *testing.T) {
	vault := &stubVault{def: "sk-default", hasDef: true}
	r := New(vault, "sk-shared")

	got, err := r.Resolve(context.Background(), Request{UserID: "u1"})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "sk-default" {
		t.Fatalf("stored default must win over fallback, got %q", got)
	}
}

func TestResolve_FallbackWhenNoDefault(t *testing.T) {
	vault := &stubVault{hasDef: false}
	r := New(vault, "sk-shared")

	got, err := r.Resolve(context.Background(), Request{UserID: "u1"})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "sk-shared" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestResolve_NothingAvailable(t *testing.T) {
	vault := &stubVault{hasDef: false}
	r := New(vault, "")

	_, err := r.Resolve(context.Background(), Request{UserID: "u1"})
	if !errors.Is(err, common.ErrNoCredentialAvailable) {
		t.Fatalf("want ErrNoCredentialAvailable, got %v", err)
	}
}

func TestResolve_VaultErrorPropagates(t *testing.T) {
	vault := &stubVault{defErr: errors.New("db down")}
	r := New(vault, "sk-shared")

	// A vault failure is not "no default": it must not silently fall back.
	_, err := r.Resolve(context.Background(), Request{UserID: "u1"})
	if err == nil || errors.Is(err, common.ErrNoCredentialAvailable) {
		t.Fatalf("want wrapped vault error, got %v", err)
	}
}
