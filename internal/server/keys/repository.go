package keys

import (
	"context"
)

// Repository is the persistence contract for stored credentials. Every
// method that targets a single row takes the owner's userID and applies it
// in the query predicate: ownership is enforced by the lookup itself, not
// filtered afterwards.
type Repository interface {
	Create(ctx context.Context, credential *Credential) (*Credential, error)
	ListByUser(ctx context.Context, userID string) ([]*Credential, error)
	GetByID(ctx context.Context, userID, id string) (*Credential, error)
	GetDefault(ctx context.Context, userID string) (*Credential, error)
	Delete(ctx context.Context, userID, id string) error
	TouchLastUsed(ctx context.Context, id string) error
}
