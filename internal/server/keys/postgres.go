// Package keys implements the credential vault: ownership-scoped storage of
// provider API keys, encrypted at rest, with resolution helpers that hand
// out plaintext only for the lifetime of a single request.
package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/common"
	"github.com/chatvault/chatvault/internal/dbx"
)

// PostgresRepository implements credential storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, credential *Credential) (*Credential, error) {
	query := `
		INSERT INTO api_keys (id, user_id, label, ciphertext)
		VALUES ($1, $2, $3, $4)
		RETURNING is_active, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		credential.ID, credential.UserID, credential.Label, credential.Ciphertext).
		Scan(&credential.IsActive, &credential.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return credential, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Credential, error) {
	// Ciphertext is deliberately not selected: listings are metadata only.
	query := `
		SELECT id, label, is_active, created_at, last_used FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select credentials: %w", err)
	}
	defer rows.Close()

	var result []*Credential
	for rows.Next() {
		item := Credential{UserID: userID}
		var lastUsed sql.NullTime
		if err := rows.Scan(&item.ID, &item.Label, &item.IsActive, &item.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			item.LastUsed = &lastUsed.Time
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*Credential, error) {
	query := `
		SELECT id, user_id, label, ciphertext, is_active, created_at, last_used FROM api_keys
		WHERE id = $1 AND user_id = $2
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

// GetDefault returns the user's oldest active credential, or
// common.ErrorNotFound when none exists. Creation order makes the default
// stable across calls.
func (r *PostgresRepository) GetDefault(ctx context.Context, userID string) (*Credential, error) {
	query := `
		SELECT id, user_id, label, ciphertext, is_active, created_at, last_used FROM api_keys
		WHERE user_id = $1 AND is_active
		ORDER BY created_at, id
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Credential, error) {
	credential := &Credential{}
	var lastUsed sql.NullTime
	err := row.Scan(&credential.ID, &credential.UserID, &credential.Label,
		&credential.Ciphertext, &credential.IsActive, &credential.CreatedAt, &lastUsed)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	if lastUsed.Valid {
		credential.LastUsed = &lastUsed.Time
	}
	return credential, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET last_used = now() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
