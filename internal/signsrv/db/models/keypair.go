package models

import (
	"time"
)

// KeyStatus is the lifecycle state of a keypair.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "ACTIVE"
	KeyStatusRevoked KeyStatus = "REVOKED"
)

/*
    Column      |          Type           | Collation | Nullable |      Default
----------------+-------------------------+-----------+----------+--------------------
 key_id         | text                    |           | not null |
 owner_identity | text                    |           | not null |
 owner_name     | text                    |           | not null | ''
 owner_email    | text                    |           | not null | ''
 owner_role     | text                    |           | not null | ''
 public_key     | bytea                   |           | not null |
 private_key    | bytea                   |           | not null |
 status         | text                    |           | not null |
 created_at     | timestamptz             |           | not null | now()
 revoked_at     | timestamptz             |           |          |
 revoke_reason  | text                    |           | not null | ''
Indexes:
    "signing_keypairs_pkey" PRIMARY KEY, btree (key_id)
    "idx_active_keypair_per_owner" UNIQUE, btree (owner_identity) WHERE status = 'ACTIVE'
*/

// KeyPair is a stored signing keypair. KeyID is derived from the public key
// (first 16 hex chars of its SHA-256 over the PEM encoding). PrivateKey holds
// the keycrypt-sealed blob; plaintext key material is never stored.
type KeyPair struct {
	KeyID         string     `db:"key_id"`
	OwnerIdentity string     `db:"owner_identity"`
	OwnerName     string     `db:"owner_name"`
	OwnerEmail    string     `db:"owner_email"`
	OwnerRole     string     `db:"owner_role"`
	PublicKey     []byte     `db:"public_key"`
	PrivateKey    []byte     `db:"private_key"`
	Status        KeyStatus  `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokeReason  string     `db:"revoke_reason"`
}
