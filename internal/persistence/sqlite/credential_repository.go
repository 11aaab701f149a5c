package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/focus-timer/internal/persistence"
)

// CredentialRepository implements persistence.CredentialRepository using SQLite
type CredentialRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCredentialRepository creates a new SQLite owner credential repository
func NewCredentialRepository(pool *ConnectionPool) *CredentialRepository {
	return &CredentialRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateCredential stores a new API key.
func (r *CredentialRepository) CreateCredential(ctx context.Context, credential persistence.OwnerCredential) error {
	if credential.KeyID == "" || credential.OwnerID == "" || credential.SecretHash == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO owner_credentials (key_id, owner_id, secret_hash, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		credential.KeyID,
		credential.OwnerID,
		credential.SecretHash,
		formatTime(credential.CreatedAt),
		formatNullableTime(credential.RevokedAt),
	)
	return err
}

// GetCredential retrieves an API key by its public identifier.
func (r *CredentialRepository) GetCredential(ctx context.Context, keyID string) (persistence.OwnerCredential, error) {
	query := `
		SELECT key_id, owner_id, secret_hash, created_at, revoked_at
		FROM owner_credentials
		WHERE key_id = ?`

	var (
		credential persistence.OwnerCredential
		createdAt  string
		revokedAt  sql.NullString
	)
	err := r.helper.QueryRow(ctx, query, keyID).Scan(
		&credential.KeyID,
		&credential.OwnerID,
		&credential.SecretHash,
		&createdAt,
		&revokedAt,
	)
	if err != nil {
		return persistence.OwnerCredential{}, r.mapper.MapError(err)
	}

	if credential.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.OwnerCredential{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if credential.RevokedAt, err = parseNullableTime(revokedAt); err != nil {
		return persistence.OwnerCredential{}, fmt.Errorf("failed to parse revoked_at: %w", err)
	}
	return credential, nil
}

// RevokeCredential marks an API key as revoked. Revoking twice keeps the
// first revocation time.
func (r *CredentialRepository) RevokeCredential(ctx context.Context, keyID string, revokedAt time.Time) error {
	query := `
		UPDATE owner_credentials
		SET revoked_at = COALESCE(revoked_at, ?)
		WHERE key_id = ?`

	result, err := r.helper.Exec(ctx, query, formatTime(revokedAt), keyID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
