// Package resolver decides which plaintext provider credential a request
// uses. The precedence policy is an ordered list evaluated top to bottom,
// first match wins:
//
//  1. demo mode          -> operator fallback key (no identity, no vault)
//  2. explicit reference -> the caller's own stored credential, by id
//  3. stored default     -> the caller's oldest active stored credential
//  4. operator fallback  -> the shared key, if configured
//  5. otherwise          -> common.ErrNoCredentialAvailable
//
// Explicit intent outranks any default, and a user's own stored credential
// outranks the shared fallback, so a user who configures their own key is
// never silently billed against the operator's.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/common"
)

// Vault is the subset of the credential vault the resolver consults.
type Vault interface {
	ResolveByID(ctx context.Context, userID, id string) (string, error)
	ResolveDefault(ctx context.Context, userID string) (string, bool, error)
}

// Request is the ephemeral, per-request resolution context. It is never
// persisted.
type Request struct {
	// UserID identifies the authenticated principal; empty for
	// unauthenticated demo requests.
	UserID string

	// CredentialID optionally names one of the principal's stored
	// credentials explicitly.
	CredentialID string

	// DemoMode requests the operator's shared fallback key and bypasses
	// identity and vault entirely.
	DemoMode bool
}

// Resolver evaluates the precedence policy against a vault and the
// process-wide fallback secret configured at start.
type Resolver struct {
	vault       Vault
	fallbackKey string
}

func New(vault Vault, fallbackKey string) *Resolver {
	return &Resolver{vault: vault, fallbackKey: fallbackKey}
}

// Resolve returns exactly one plaintext credential for the request, or an
// error describing why none was usable. It never falls through to an empty
// credential: every branch that depends on the fallback fails closed when
// the fallback is absent.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	if req.DemoMode {
		if r.fallbackKey == "" {
			return "", common.ErrDemoUnavailable
		}
		return r.fallbackKey, nil
	}

	if req.CredentialID != "" {
		plaintext, err := r.vault.ResolveByID(ctx, req.UserID, req.CredentialID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return "", common.ErrCredentialNotFound
			}
			return "", fmt.Errorf("resolving credential %s: %w", req.CredentialID, err)
		}
		return plaintext, nil
	}

	if req.UserID != "" {
		plaintext, ok, err := r.vault.ResolveDefault(ctx, req.UserID)
		if err != nil {
			return "", fmt.Errorf("resolving default credential: %w", err)
		}
		if ok {
			return plaintext, nil
		}
	}

	if r.fallbackKey != "" {
		return r.fallbackKey, nil
	}

	return "", common.ErrNoCredentialAvailable
}
