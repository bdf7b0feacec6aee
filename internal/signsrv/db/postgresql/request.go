package postgresql

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/common/uuid"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// CreateRequest stores a new signature request.
func (s *Store) CreateRequest(ctx context.Context, req *models.SignatureRequest) apperrors.Error {
	if req == nil || req.RequestID == uuid.Nil || req.DocumentID == "" {
		return dberror.ErrInvalidInput.Msg("request ID and document ID are required")
	}

	query := `
		INSERT INTO signature_requests
			(request_id, document_id, required_signers, optional_signers,
			 requesting_identity, token, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING request_id`

	row := s.db.QueryRowContext(ctx, query,
		req.RequestID, req.DocumentID,
		pq.Array(req.RequiredSigners), pq.Array(req.OptionalSigners),
		req.RequestingIdentity, req.Token, req.Status, req.CreatedAt, req.ExpiresAt)
	var returnedID uuid.UUID
	if err := row.Scan(&returnedID); err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrAlreadyExists.Msg("request already exists")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to create signature request")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

const requestColumns = `
	request_id, document_id, required_signers, optional_signers,
	requesting_identity, token, status, created_at, expires_at`

func scanRequest(row interface{ Scan(...any) error }) (*models.SignatureRequest, error) {
	var req models.SignatureRequest
	err := row.Scan(&req.RequestID, &req.DocumentID,
		pq.Array(&req.RequiredSigners), pq.Array(&req.OptionalSigners),
		&req.RequestingIdentity, &req.Token, &req.Status, &req.CreatedAt, &req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequest returns a request by ID.
func (s *Store) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.SignatureRequest, apperrors.Error) {
	query := `
		SELECT ` + requestColumns + `
		FROM signature_requests
		WHERE request_id = $1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("signature request not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get signature request")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return req, nil
}

// GetRequestByToken returns the request carrying the given token.
func (s *Store) GetRequestByToken(ctx context.Context, token string) (*models.SignatureRequest, apperrors.Error) {
	query := `
		SELECT ` + requestColumns + `
		FROM signature_requests
		WHERE token = $1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("signature request not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get signature request by token")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return req, nil
}

// LatestRequestForDocument returns the most recent request for a document.
func (s *Store) LatestRequestForDocument(ctx context.Context, documentID string) (*models.SignatureRequest, apperrors.Error) {
	query := `
		SELECT ` + requestColumns + `
		FROM signature_requests
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("no signature request for document")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to get latest signature request")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return req, nil
}

// UpdateRequestStatus sets the request status.
func (s *Store) UpdateRequestStatus(ctx context.Context, requestID uuid.UUID, status models.RequestStatus) apperrors.Error {
	query := `
		UPDATE signature_requests
		SET status = $1
		WHERE request_id = $2
		RETURNING request_id`

	var returnedID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, status, requestID).Scan(&returnedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("signature request not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to update signature request")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// ListRequestsByStatus returns all requests in the given status.
func (s *Store) ListRequestsByStatus(ctx context.Context, status models.RequestStatus) ([]*models.SignatureRequest, apperrors.Error) {
	query := `
		SELECT ` + requestColumns + `
		FROM signature_requests
		WHERE status = $1
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list signature requests")
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var reqs []*models.SignatureRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return reqs, nil
}
