package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// PutKeyPair stores a new keypair record.
func (s *Store) PutKeyPair(ctx context.Context, key *models.KeyPair) apperrors.Error {
	if key == nil || key.KeyID == "" || key.OwnerIdentity == "" {
		return dberror.ErrInvalidInput.Msg("key ID and owner identity are required")
	}

	query := `
		INSERT INTO signing_keypairs
			(key_id, owner_identity, owner_name, owner_email, owner_role,
			 public_key, private_key, status, created_at, revoke_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '')
		ON CONFLICT (key_id) DO NOTHING
		RETURNING key_id`

	row := s.db.QueryRowContext(ctx, query,
		key.KeyID, key.OwnerIdentity, key.OwnerName, key.OwnerEmail, key.OwnerRole,
		key.PublicKey, key.PrivateKey, key.Status, key.CreatedAt)
	var returnedKeyID string
	if err := row.Scan(&returnedKeyID); err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrAlreadyExists.Msg("key already exists")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to store keypair")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

const keyPairColumns = `
	key_id, owner_identity, owner_name, owner_email, owner_role,
	public_key, private_key, status, created_at, revoked_at, revoke_reason`

func scanKeyPair(row interface{ Scan(...any) error }) (*models.KeyPair, error) {
	var key models.KeyPair
	var revokedAt sql.NullTime
	err := row.Scan(&key.KeyID, &key.OwnerIdentity, &key.OwnerName, &key.OwnerEmail, &key.OwnerRole,
		&key.PublicKey, &key.PrivateKey, &key.Status, &key.CreatedAt, &revokedAt, &key.RevokeReason)
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		key.RevokedAt = &t
	}
	return &key, nil
}

// GetActiveKeyPair retrieves the owner's ACTIVE keypair.
func (s *Store) GetActiveKeyPair(ctx context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error) {
	query := `
		SELECT ` + keyPairColumns + `
		FROM signing_keypairs
		WHERE owner_identity = $1 AND status = 'ACTIVE'`

	key, err := scanKeyPair(s.db.QueryRowContext(ctx, query, ownerIdentity))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("no active keypair for owner")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get active keypair")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return key, nil
}

// GetLatestKeyPair retrieves the owner's most recently created keypair.
func (s *Store) GetLatestKeyPair(ctx context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error) {
	query := `
		SELECT ` + keyPairColumns + `
		FROM signing_keypairs
		WHERE owner_identity = $1
		ORDER BY created_at DESC
		LIMIT 1`

	key, err := scanKeyPair(s.db.QueryRowContext(ctx, query, ownerIdentity))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("no keypair for owner")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get latest keypair")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return key, nil
}

// GetKeyPairByKeyID retrieves a keypair by its derived key ID.
func (s *Store) GetKeyPairByKeyID(ctx context.Context, keyID string) (*models.KeyPair, apperrors.Error) {
	query := `
		SELECT ` + keyPairColumns + `
		FROM signing_keypairs
		WHERE key_id = $1`

	key, err := scanKeyPair(s.db.QueryRowContext(ctx, query, keyID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("keypair not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get keypair")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return key, nil
}

// RevokeKeyPair marks a keypair REVOKED with the given reason.
func (s *Store) RevokeKeyPair(ctx context.Context, keyID string, reason string, revokedAt time.Time) apperrors.Error {
	query := `
		UPDATE signing_keypairs
		SET status = 'REVOKED', revoked_at = $1, revoke_reason = $2
		WHERE key_id = $3
		RETURNING key_id`

	var returnedKeyID string
	err := s.db.QueryRowContext(ctx, query, revokedAt, reason, keyID).Scan(&returnedKeyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("keypair not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to revoke keypair")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// DeleteKeyPair permanently removes a keypair record.
func (s *Store) DeleteKeyPair(ctx context.Context, keyID string) apperrors.Error {
	query := `
		DELETE FROM signing_keypairs
		WHERE key_id = $1
		RETURNING key_id`

	var returnedKeyID string
	err := s.db.QueryRowContext(ctx, query, keyID).Scan(&returnedKeyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("keypair not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to delete keypair")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// ListOwners returns the distinct owner identities with stored keypairs.
func (s *Store) ListOwners(ctx context.Context) ([]string, apperrors.Error) {
	query := `
		SELECT DISTINCT owner_identity
		FROM signing_keypairs
		ORDER BY owner_identity`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list owners")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return owners, nil
}

// ListKeyPairs returns all stored keypair records.
func (s *Store) ListKeyPairs(ctx context.Context) ([]*models.KeyPair, apperrors.Error) {
	query := `
		SELECT ` + keyPairColumns + `
		FROM signing_keypairs
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list keypairs")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var keys []*models.KeyPair
	for rows.Next() {
		key, err := scanKeyPair(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return keys, nil
}
