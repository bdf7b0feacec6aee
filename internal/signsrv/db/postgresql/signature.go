package postgresql

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// AppendSignature adds a signature record to a document's signature list.
func (s *Store) AppendSignature(ctx context.Context, rec *models.SignatureRecord) apperrors.Error {
	if rec == nil || rec.SignatureID == "" || rec.DocumentID == "" {
		return dberror.ErrInvalidInput.Msg("signature ID and document ID are required")
	}

	query := `
		INSERT INTO document_signatures
			(signature_id, document_id, document_hash,
			 signer_identity, signer_name, signer_email, signer_role,
			 signed_at, source_address, client_context,
			 key_id, algorithm, version, signature, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (signature_id) DO NOTHING
		RETURNING signature_id`

	row := s.db.QueryRowContext(ctx, query,
		rec.SignatureID, rec.DocumentID, rec.DocumentHash,
		rec.SignerIdentity, rec.SignerName, rec.SignerEmail, rec.SignerRole,
		rec.SignedAt, rec.SourceAddress, rec.ClientContext,
		rec.KeyID, rec.Algorithm, rec.Version, rec.Signature, rec.Payload)
	var returnedID string
	if err := row.Scan(&returnedID); err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrAlreadyExists.Msg("signature already recorded")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to store signature")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

const signatureColumns = `
	signature_id, document_id, document_hash,
	signer_identity, signer_name, signer_email, signer_role,
	signed_at, source_address, client_context,
	key_id, algorithm, version, signature, payload, created_at`

func scanSignature(row interface{ Scan(...any) error }) (*models.SignatureRecord, error) {
	var rec models.SignatureRecord
	err := row.Scan(&rec.SignatureID, &rec.DocumentID, &rec.DocumentHash,
		&rec.SignerIdentity, &rec.SignerName, &rec.SignerEmail, &rec.SignerRole,
		&rec.SignedAt, &rec.SourceAddress, &rec.ClientContext,
		&rec.KeyID, &rec.Algorithm, &rec.Version, &rec.Signature, &rec.Payload, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetSignature returns one signature of a document by signature ID.
func (s *Store) GetSignature(ctx context.Context, documentID, signatureID string) (*models.SignatureRecord, apperrors.Error) {
	query := `
		SELECT ` + signatureColumns + `
		FROM document_signatures
		WHERE document_id = $1 AND signature_id = $2`

	rec, err := scanSignature(s.db.QueryRowContext(ctx, query, documentID, signatureID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("signature not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get signature")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return rec, nil
}

// ListSignatures returns all signatures collected for a document.
func (s *Store) ListSignatures(ctx context.Context, documentID string) ([]*models.SignatureRecord, apperrors.Error) {
	query := `
		SELECT ` + signatureColumns + `
		FROM document_signatures
		WHERE document_id = $1
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list signatures")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var recs []*models.SignatureRecord
	for rows.Next() {
		rec, err := scanSignature(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return recs, nil
}
