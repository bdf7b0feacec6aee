// Package db defines the storage capabilities the signing service depends
// on. Each store is a small keyed-storage interface with PostgreSQL and
// in-memory implementations; components receive stores by dependency
// injection and never reach for a global connection.
package db

import (
	"context"
	"time"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/common/uuid"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// KeyStore is durable keyed storage for signing keypairs. Private key
// material in stored records is always keycrypt-sealed.
type KeyStore interface {
	// PutKeyPair stores a new keypair record. Fails with
	// dberror.ErrAlreadyExists if the key ID is already present.
	PutKeyPair(ctx context.Context, key *models.KeyPair) apperrors.Error
	// GetActiveKeyPair returns the owner's ACTIVE keypair, or
	// dberror.ErrNotFound if the owner has none.
	GetActiveKeyPair(ctx context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error)
	// GetLatestKeyPair returns the owner's most recently created keypair
	// regardless of status, or dberror.ErrNotFound.
	GetLatestKeyPair(ctx context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error)
	// GetKeyPairByKeyID returns the keypair with the given derived key ID.
	GetKeyPairByKeyID(ctx context.Context, keyID string) (*models.KeyPair, apperrors.Error)
	// RevokeKeyPair marks a keypair REVOKED with the given reason and
	// revocation time. Fails with dberror.ErrNotFound for unknown key IDs.
	RevokeKeyPair(ctx context.Context, keyID string, reason string, revokedAt time.Time) apperrors.Error
	// DeleteKeyPair permanently removes a keypair record.
	DeleteKeyPair(ctx context.Context, keyID string) apperrors.Error
	// ListOwners returns the distinct owner identities with at least one
	// stored keypair.
	ListOwners(ctx context.Context) ([]string, apperrors.Error)
	// ListKeyPairs returns all stored keypair records.
	ListKeyPairs(ctx context.Context) ([]*models.KeyPair, apperrors.Error)
}

// SignatureStore persists the exact signature bytes and canonical payload
// produced at signing time for later verification.
type SignatureStore interface {
	// AppendSignature adds a signature record to a document's signature list.
	AppendSignature(ctx context.Context, rec *models.SignatureRecord) apperrors.Error
	// GetSignature returns one signature of a document by signature ID.
	GetSignature(ctx context.Context, documentID, signatureID string) (*models.SignatureRecord, apperrors.Error)
	// ListSignatures returns all signatures collected for a document in
	// insertion order.
	ListSignatures(ctx context.Context, documentID string) ([]*models.SignatureRecord, apperrors.Error)
}

// RequestStore persists signature requests.
type RequestStore interface {
	// CreateRequest stores a new signature request.
	CreateRequest(ctx context.Context, req *models.SignatureRequest) apperrors.Error
	// GetRequest returns a request by ID, or dberror.ErrNotFound.
	GetRequest(ctx context.Context, requestID uuid.UUID) (*models.SignatureRequest, apperrors.Error)
	// GetRequestByToken returns the request carrying the given token.
	GetRequestByToken(ctx context.Context, token string) (*models.SignatureRequest, apperrors.Error)
	// LatestRequestForDocument returns the most recently created request for
	// a document, or dberror.ErrNotFound.
	LatestRequestForDocument(ctx context.Context, documentID string) (*models.SignatureRequest, apperrors.Error)
	// UpdateRequestStatus sets the request status. The store does not
	// enforce the state machine; callers gate transitions.
	UpdateRequestStatus(ctx context.Context, requestID uuid.UUID, status models.RequestStatus) apperrors.Error
	// ListRequestsByStatus returns all requests in the given status.
	ListRequestsByStatus(ctx context.Context, status models.RequestStatus) ([]*models.SignatureRequest, apperrors.Error)
}
