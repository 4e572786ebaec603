package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/cryptox"
	"github.com/chatvault/chatvault/internal/dbx"
	"github.com/google/uuid"
)

// DefaultLabel is used when a caller stores a credential without naming it.
// Labels are descriptive, not unique keys; duplicates are allowed.
const DefaultLabel = "Default"

// Service is the credential vault. It is the only component that sees
// stored ciphertext and the only one permitted to decrypt it. Resolution
// runs read + last-used stamp inside one transaction.
type Service struct {
	db  *sql.DB
	key []byte
}

func NewService(db *sql.DB, encryptionKey []byte) *Service {
	return &Service{db: db, key: encryptionKey}
}

func (s *Service) repo(db dbx.DBTX) Repository {
	return NewPostgresRepository(db)
}

// Store encrypts the plaintext secret and persists it for the owner.
// The plaintext buffer is wiped before returning.
func (s *Service) Store(ctx context.Context, userID, plaintextSecret, label string) (*Metadata, error) {
	if label == "" {
		label = DefaultLabel
	}

	secret := []byte(plaintextSecret)
	ciphertext, err := cryptox.Encrypt(secret, s.key)
	common.WipeByteArray(secret)
	if err != nil {
		return nil, fmt.Errorf("error encrypting credential: %w", err)
	}

	credential := &Credential{
		ID:         uuid.NewString(),
		UserID:     userID,
		Label:      label,
		Ciphertext: ciphertext,
	}

	credential, err = s.repo(s.db).Create(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("error storing credential: %w", err)
	}

	return credential.metadata(), nil
}

// List returns metadata for all of the user's credentials, never ciphertext
// or plaintext.
func (s *Service) List(ctx context.Context, userID string) ([]*Metadata, error) {
	credentials, err := s.repo(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing credentials: %w", err)
	}

	result := make([]*Metadata, 0, len(credentials))
	for _, c := range credentials {
		result = append(result, c.metadata())
	}
	return result, nil
}

// ResolveByID decrypts the credential identified by id, provided it exists
// and belongs to userID; otherwise common.ErrorNotFound. A successful
// resolution stamps last_used exactly once, in the same transaction as the
// read.
func (s *Service) ResolveByID(ctx context.Context, userID, id string) (string, error) {
	var credential *Credential

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)

		var err error
		credential, err = repo.GetByID(ctx, userID, id)
		if err != nil {
			return err
		}

		return repo.TouchLastUsed(ctx, credential.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("error resolving credential: %w", err)
	}

	return s.decrypt(credential)
}

// ResolveDefault decrypts the user's oldest active credential. The second
// return value is false when the user has none stored; that is not an
// error, merely "no default".
func (s *Service) ResolveDefault(ctx context.Context, userID string) (string, bool, error) {
	var credential *Credential

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)

		var err error
		credential, err = repo.GetDefault(ctx, userID)
		if err != nil {
			return err
		}

		return repo.TouchLastUsed(ctx, credential.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error resolving default credential: %w", err)
	}

	plaintext, err := s.decrypt(credential)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

// Revoke deletes the credential, scoped to the owner. Attempting to revoke
// another user's credential yields common.ErrorNotFound, not a hint that
// the row exists.
func (s *Service) Revoke(ctx context.Context, userID, id string) error {
	return s.repo(s.db).Delete(ctx, userID, id)
}

func (s *Service) decrypt(credential *Credential) (string, error) {
	plaintext, err := cryptox.Decrypt(credential.Ciphertext, s.key)
	if err != nil {
		// Never hand a corrupted secret downstream: fail the resolution.
		return "", fmt.Errorf("credential %s: %w", credential.ID, err)
	}
	return string(plaintext), nil
}
