package models

import (
	"time"

	"github.com/inkform/inkform/internal/common/uuid"
)

// RequestStatus is the lifecycle state of a signature request. Transitions
// are forward-only: PENDING may move to COMPLETED, EXPIRED, or CANCELLED, and
// no transition leaves any of those states.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusCompleted RequestStatus = "COMPLETED"
	RequestStatusExpired   RequestStatus = "EXPIRED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

/*
      Column         |          Type           | Collation | Nullable |      Default
---------------------+-------------------------+-----------+----------+--------------------
 request_id          | uuid                    |           | not null |
 document_id         | text                    |           | not null |
 required_signers    | text[]                  |           | not null | '{}'
 optional_signers    | text[]                  |           | not null | '{}'
 requesting_identity | text                    |           | not null |
 token               | text                    |           | not null |
 status              | text                    |           | not null | 'PENDING'
 created_at          | timestamptz             |           | not null | now()
 expires_at          | timestamptz             |           | not null |
Indexes:
    "signature_requests_pkey" PRIMARY KEY, btree (request_id)
    "idx_requests_by_document" btree (document_id, created_at)
    "idx_requests_by_token" UNIQUE, btree (token)
*/

// SignatureRequest is a stored time-bound invitation for a set of identities
// to sign a document.
type SignatureRequest struct {
	RequestID          uuid.UUID     `db:"request_id"`
	DocumentID         string        `db:"document_id"`
	RequiredSigners    []string      `db:"required_signers"`
	OptionalSigners    []string      `db:"optional_signers"`
	RequestingIdentity string        `db:"requesting_identity"`
	Token              string        `db:"token"`
	Status             RequestStatus `db:"status"`
	CreatedAt          time.Time     `db:"created_at"`
	ExpiresAt          time.Time     `db:"expires_at"`
}

// IsExpired reports whether the request's expiry instant has passed.
func (r *SignatureRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
