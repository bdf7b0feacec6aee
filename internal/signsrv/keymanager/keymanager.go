// Package keymanager owns the lifecycle of signing keypairs per signer
// identity: generation, retrieval, revocation, statistics, and
// retention-driven cleanup. Private key material exists in plaintext only
// inside this package and for the duration of a signing call; the store
// only ever sees keycrypt-sealed blobs.
package keymanager

import (
	"context"
	"crypto/rsa"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/auditlog"
	"github.com/inkform/inkform/internal/signsrv/db"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
	"github.com/inkform/inkform/internal/signsrv/keycrypt"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
)

// RevokeReasonRegeneration is the reason recorded when a key is revoked as
// part of an explicit regeneration.
const RevokeReasonRegeneration = "regeneration"

const lockStripes = 64

// OwnerInfo carries optional display metadata recorded with a keypair.
type OwnerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// KeyPairView is the public view of a keypair. It never carries private key
// material.
type KeyPairView struct {
	KeyID         string           `json:"keyId"`
	OwnerIdentity string           `json:"ownerIdentity"`
	OwnerInfo     OwnerInfo        `json:"ownerInfo"`
	PublicKeyPEM  string           `json:"publicKey"`
	Status        models.KeyStatus `json:"status"`
	CreatedAt     time.Time        `json:"createdAt"`
	RevokedAt     *time.Time       `json:"revokedAt,omitempty"`
	RevokeReason  string           `json:"revokeReason,omitempty"`
}

// RevocationRecord describes a completed revocation. Signatures already
// produced with the key remain verifiable; revocation only blocks future
// signing.
type RevocationRecord struct {
	KeyID         string    `json:"keyId"`
	OwnerIdentity string    `json:"ownerIdentity"`
	Reason        string    `json:"reason"`
	RevokedAt     time.Time `json:"revokedAt"`
}

// Statistics summarizes the stored key population.
type Statistics struct {
	TotalKeys  int            `json:"totalKeys"`
	OwnerCount int            `json:"ownerCount"`
	ByStatus   map[string]int `json:"byStatus"`
	ByRole     map[string]int `json:"byRole"`
}

// KeyManager manages signing keypairs over a KeyStore. Generation is
// serialized per owner identity so two concurrent calls can never both
// observe "no active key" and each create one.
type KeyManager struct {
	store  db.KeyStore
	passwd string
	audit  *auditlog.Writer
	locks  [lockStripes]sync.Mutex
}

// New creates a KeyManager over the given store. encryptionPasswd seals
// private keys before they reach the store.
func New(store db.KeyStore, encryptionPasswd string) *KeyManager {
	return &KeyManager{
		store:  store,
		passwd: encryptionPasswd,
	}
}

// SetAuditLog attaches an audit writer. Key lifecycle events are recorded
// there; a nil writer disables audit logging.
func (km *KeyManager) SetAuditLog(audit *auditlog.Writer) {
	km.audit = audit
}

func (km *KeyManager) record(event auditlog.Event) {
	if km.audit == nil {
		return
	}
	if err := km.audit.Record(event); err != nil {
		log.Error().Err(err).Str("event", event.Event).Msg("unable to write audit event")
	}
}

func (km *KeyManager) lockFor(ownerIdentity string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(ownerIdentity))
	return &km.locks[h.Sum32()%lockStripes]
}

// GenerateKeyPair returns the owner's keypair, generating one if needed.
// With an existing ACTIVE key and regenerate false the call is idempotent
// and returns the existing key unchanged. With regenerate true the existing
// key is revoked first (reason "regeneration") and a fresh keypair is
// generated.
func (km *KeyManager) GenerateKeyPair(ctx context.Context, ownerIdentity string, info OwnerInfo, regenerate bool) (*KeyPairView, apperrors.Error) {
	if ownerIdentity == "" {
		return nil, ErrKeyManager.Msg("owner identity is required").SetStatusCode(400)
	}

	mu := km.lockFor(ownerIdentity)
	mu.Lock()
	defer mu.Unlock()

	existing, err := km.getActiveWithRetry(ctx, ownerIdentity)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if !regenerate {
			return viewOf(existing), nil
		}
		now := time.Now().UTC()
		if err := km.store.RevokeKeyPair(ctx, existing.KeyID, RevokeReasonRegeneration, now); err != nil {
			return nil, ErrKeyStorage.Msg("unable to revoke key for regeneration").Err(err)
		}
		log.Ctx(ctx).Info().
			Str("owner", ownerIdentity).
			Str("key_id", existing.KeyID).
			Msg("revoked key for regeneration")
		km.record(auditlog.Event{
			Event:          auditlog.EventKeyRevoked,
			SignerIdentity: ownerIdentity,
			KeyID:          existing.KeyID,
			Detail:         RevokeReasonRegeneration,
		})
	}

	priv, genErr := sigengine.GenerateKey()
	if genErr != nil {
		log.Ctx(ctx).Error().Err(genErr).Msg("unable to generate keypair")
		return nil, ErrKeyGenerationFailed.Err(genErr)
	}

	pubPEM, aerr := sigengine.EncodePublicKeyPEM(&priv.PublicKey)
	if aerr != nil {
		return nil, ErrKeyGenerationFailed.Err(aerr)
	}
	privPEM, aerr := sigengine.EncodePrivateKeyPEM(priv)
	if aerr != nil {
		return nil, ErrKeyGenerationFailed.Err(aerr)
	}

	sealed, sealErr := keycrypt.Seal(privPEM, km.passwd)
	if sealErr != nil {
		log.Ctx(ctx).Error().Err(sealErr).Msg("unable to seal private key")
		return nil, ErrKeyGenerationFailed.Err(sealErr)
	}

	key := &models.KeyPair{
		KeyID:         sigengine.DeriveKeyID(pubPEM),
		OwnerIdentity: ownerIdentity,
		OwnerName:     info.Name,
		OwnerEmail:    info.Email,
		OwnerRole:     info.Role,
		PublicKey:     pubPEM,
		PrivateKey:    sealed,
		Status:        models.KeyStatusActive,
		CreatedAt:     time.Now().UTC(),
	}

	retryErr := retry.Do(func() error {
		return km.store.PutKeyPair(ctx, key)
	}, retry.Attempts(3), retry.Delay(time.Second), retry.DelayType(retry.BackOffDelay))
	if retryErr != nil {
		return nil, ErrKeyStorage.Msg("unable to store keypair").Err(retryErr)
	}

	log.Ctx(ctx).Info().
		Str("owner", ownerIdentity).
		Str("key_id", key.KeyID).
		Msg("generated keypair")
	km.record(auditlog.Event{
		Event:          auditlog.EventKeyGenerated,
		SignerIdentity: ownerIdentity,
		KeyID:          key.KeyID,
	})

	return viewOf(key), nil
}

func (km *KeyManager) getActiveWithRetry(ctx context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error) {
	var key *models.KeyPair
	err := retry.Do(func() error {
		var err apperrors.Error
		key, err = km.store.GetActiveKeyPair(ctx, ownerIdentity)
		if err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				key = nil
				return nil
			}
			return err
		}
		return nil
	}, retry.Attempts(3), retry.Delay(time.Second), retry.DelayType(retry.BackOffDelay))
	if err != nil {
		return nil, ErrKeyStorage.Msg("unable to read key store").Err(err)
	}
	return key, nil
}

// GetKeys returns the owner's most recent keypair, active or revoked.
func (km *KeyManager) GetKeys(ctx context.Context, ownerIdentity string) (*KeyPairView, apperrors.Error) {
	key, err := km.store.GetLatestKeyPair(ctx, ownerIdentity)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrKeyNotFound.Msg("no keys for owner")
		}
		return nil, ErrKeyStorage.Err(err)
	}
	return viewOf(key), nil
}

// GetPrivateKeyForSigning returns the owner's ACTIVE private key and its key
// ID. Fails with ErrNoActiveKey if the owner has no usable key; callers
// must provision keys first. The returned key must not be retained beyond
// the signing call.
func (km *KeyManager) GetPrivateKeyForSigning(ctx context.Context, ownerIdentity string) (*rsa.PrivateKey, string, apperrors.Error) {
	key, err := km.store.GetActiveKeyPair(ctx, ownerIdentity)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, "", ErrNoActiveKey
		}
		return nil, "", ErrKeyStorage.Err(err)
	}

	privPEM, openErr := keycrypt.Open(key.PrivateKey, km.passwd)
	if openErr != nil {
		log.Ctx(ctx).Error().Err(openErr).Str("key_id", key.KeyID).Msg("unable to unseal private key")
		return nil, "", ErrKeyStorage.Msg("unable to unseal private key").Err(openErr)
	}

	priv, aerr := sigengine.ParsePrivateKeyPEM(privPEM)
	if aerr != nil {
		return nil, "", aerr
	}
	return priv, key.KeyID, nil
}

// GetPublicKeyByKeyID returns the public key with the given derived key ID,
// regardless of status. Verifiers use this to check signatures made by
// other parties, including with since-revoked keys.
func (km *KeyManager) GetPublicKeyByKeyID(ctx context.Context, keyID string) (*rsa.PublicKey, apperrors.Error) {
	key, err := km.store.GetKeyPairByKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrKeyNotFound.Msg("no key with that ID")
		}
		return nil, ErrKeyStorage.Err(err)
	}
	return sigengine.ParsePublicKeyPEM(key.PublicKey)
}

// Revoke marks the owner's ACTIVE keypair REVOKED. Revocation does not
// invalidate signatures already produced with the key; it only prevents
// future signing.
func (km *KeyManager) Revoke(ctx context.Context, ownerIdentity, reason string) (*RevocationRecord, apperrors.Error) {
	mu := km.lockFor(ownerIdentity)
	mu.Lock()
	defer mu.Unlock()

	key, err := km.store.GetActiveKeyPair(ctx, ownerIdentity)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrKeyNotFound.Msg("no active key to revoke")
		}
		return nil, ErrKeyStorage.Err(err)
	}

	now := time.Now().UTC()
	if err := km.store.RevokeKeyPair(ctx, key.KeyID, reason, now); err != nil {
		return nil, ErrKeyStorage.Msg("unable to revoke keypair").Err(err)
	}

	log.Ctx(ctx).Info().
		Str("owner", ownerIdentity).
		Str("key_id", key.KeyID).
		Str("reason", reason).
		Msg("revoked keypair")
	km.record(auditlog.Event{
		Event:          auditlog.EventKeyRevoked,
		SignerIdentity: ownerIdentity,
		KeyID:          key.KeyID,
		Detail:         reason,
	})

	return &RevocationRecord{
		KeyID:         key.KeyID,
		OwnerIdentity: ownerIdentity,
		Reason:        reason,
		RevokedAt:     now,
	}, nil
}

// ListOwners returns the identities with at least one stored keypair.
func (km *KeyManager) ListOwners(ctx context.Context) ([]string, apperrors.Error) {
	owners, err := km.store.ListOwners(ctx)
	if err != nil {
		return nil, ErrKeyStorage.Err(err)
	}
	return owners, nil
}

// Statistics returns key counts by status and by owner role.
func (km *KeyManager) Statistics(ctx context.Context) (*Statistics, apperrors.Error) {
	keys, err := km.store.ListKeyPairs(ctx)
	if err != nil {
		return nil, ErrKeyStorage.Err(err)
	}

	stats := &Statistics{
		TotalKeys: len(keys),
		ByStatus:  make(map[string]int),
		ByRole:    make(map[string]int),
	}
	owners := make(map[string]bool)
	for _, key := range keys {
		stats.ByStatus[string(key.Status)]++
		role := key.OwnerRole
		if role == "" {
			role = "unspecified"
		}
		stats.ByRole[role]++
		owners[key.OwnerIdentity] = true
	}
	stats.OwnerCount = len(owners)
	return stats, nil
}

// Cleanup permanently deletes keys that have been REVOKED for longer than
// the retention period. ACTIVE keys are never deleted. Returns the number
// of keys removed.
func (km *KeyManager) Cleanup(ctx context.Context, retention time.Duration) (int, apperrors.Error) {
	keys, err := km.store.ListKeyPairs(ctx)
	if err != nil {
		return 0, ErrKeyStorage.Err(err)
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for _, key := range keys {
		if key.Status != models.KeyStatusRevoked || key.RevokedAt == nil {
			continue
		}
		if key.RevokedAt.After(cutoff) {
			continue
		}
		if err := km.store.DeleteKeyPair(ctx, key.KeyID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("key_id", key.KeyID).Msg("unable to delete expired key")
			continue
		}
		km.record(auditlog.Event{
			Event:          auditlog.EventKeyDeleted,
			SignerIdentity: key.OwnerIdentity,
			KeyID:          key.KeyID,
			Detail:         "retention expired",
		})
		removed++
	}

	if removed > 0 {
		log.Ctx(ctx).Info().Int("removed", removed).Msg("cleaned up revoked keys")
	}
	return removed, nil
}

func viewOf(key *models.KeyPair) *KeyPairView {
	return &KeyPairView{
		KeyID:         key.KeyID,
		OwnerIdentity: key.OwnerIdentity,
		OwnerInfo: OwnerInfo{
			Name:  key.OwnerName,
			Email: key.OwnerEmail,
			Role:  key.OwnerRole,
		},
		PublicKeyPEM: string(key.PublicKey),
		Status:       key.Status,
		CreatedAt:    key.CreatedAt,
		RevokedAt:    key.RevokedAt,
		RevokeReason: key.RevokeReason,
	}
}
