package models

import (
	"time"
)

/*
    Column        |          Type           | Collation | Nullable |      Default
------------------+-------------------------+-----------+----------+--------------------
 signature_id     | text                    |           | not null |
 document_id      | text                    |           | not null |
 document_hash    | text                    |           | not null |
 signer_identity  | text                    |           | not null |
 signer_name      | text                    |           | not null | ''
 signer_email     | text                    |           | not null | ''
 signer_role      | text                    |           | not null | ''
 signed_at        | text                    |           | not null |
 source_address   | text                    |           | not null | ''
 client_context   | text                    |           | not null | ''
 key_id           | text                    |           | not null |
 algorithm        | text                    |           | not null |
 version          | text                    |           | not null |
 signature        | bytea                   |           | not null |
 payload          | bytea                   |           | not null |
 created_at       | timestamptz             |           | not null | now()
Indexes:
    "document_signatures_pkey" PRIMARY KEY, btree (signature_id)
    "idx_signatures_by_document" btree (document_id)
*/

// SignatureRecord is a stored document signature. Signature and Payload hold
// the exact bytes produced at signing time; verification always runs against
// these stored bytes, never a reconstruction from partial metadata. SignedAt
// is kept as the exact RFC3339Nano string that was serialized into the
// payload so that round-tripping through storage cannot perturb it.
type SignatureRecord struct {
	SignatureID    string    `db:"signature_id"`
	DocumentID     string    `db:"document_id"`
	DocumentHash   string    `db:"document_hash"`
	SignerIdentity string    `db:"signer_identity"`
	SignerName     string    `db:"signer_name"`
	SignerEmail    string    `db:"signer_email"`
	SignerRole     string    `db:"signer_role"`
	SignedAt       string    `db:"signed_at"`
	SourceAddress  string    `db:"source_address"`
	ClientContext  string    `db:"client_context"`
	KeyID          string    `db:"key_id"`
	Algorithm      string    `db:"algorithm"`
	Version        string    `db:"version"`
	Signature      []byte    `db:"signature"`
	Payload        []byte    `db:"payload"`
	CreatedAt      time.Time `db:"created_at"`
}
