// Package memory provides in-memory implementations of the signing service
// stores. They back unit tests and single-node evaluation setups; durable
// deployments use the postgresql package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// KeyStore is a mutex-guarded in-memory key store.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]*models.KeyPair // by key ID
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[string]*models.KeyPair),
	}
}

func (s *KeyStore) PutKeyPair(_ context.Context, key *models.KeyPair) apperrors.Error {
	if key == nil || key.KeyID == "" || key.OwnerIdentity == "" {
		return dberror.ErrInvalidInput.Msg("key ID and owner identity are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.KeyID]; ok {
		return dberror.ErrAlreadyExists.Msg("key already exists")
	}
	cp := *key
	s.keys[key.KeyID] = &cp
	return nil
}

func (s *KeyStore) GetActiveKeyPair(_ context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.keys {
		if key.OwnerIdentity == ownerIdentity && key.Status == models.KeyStatusActive {
			cp := *key
			return &cp, nil
		}
	}
	return nil, dberror.ErrNotFound.Msg("no active keypair for owner")
}

func (s *KeyStore) GetLatestKeyPair(_ context.Context, ownerIdentity string) (*models.KeyPair, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.KeyPair
	for _, key := range s.keys {
		if key.OwnerIdentity != ownerIdentity {
			continue
		}
		if latest == nil || key.CreatedAt.After(latest.CreatedAt) {
			latest = key
		}
	}
	if latest == nil {
		return nil, dberror.ErrNotFound.Msg("no keypair for owner")
	}
	cp := *latest
	return &cp, nil
}

func (s *KeyStore) GetKeyPairByKeyID(_ context.Context, keyID string) (*models.KeyPair, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("keypair not found")
	}
	cp := *key
	return &cp, nil
}

func (s *KeyStore) RevokeKeyPair(_ context.Context, keyID string, reason string, revokedAt time.Time) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[keyID]
	if !ok {
		return dberror.ErrNotFound.Msg("keypair not found")
	}
	key.Status = models.KeyStatusRevoked
	key.RevokeReason = reason
	t := revokedAt
	key.RevokedAt = &t
	return nil
}

func (s *KeyStore) DeleteKeyPair(_ context.Context, keyID string) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[keyID]; !ok {
		return dberror.ErrNotFound.Msg("keypair not found")
	}
	delete(s.keys, keyID)
	return nil
}

func (s *KeyStore) ListOwners(_ context.Context) ([]string, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, key := range s.keys {
		seen[key.OwnerIdentity] = true
	}
	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *KeyStore) ListKeyPairs(_ context.Context) ([]*models.KeyPair, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*models.KeyPair, 0, len(s.keys))
	for _, key := range s.keys {
		cp := *key
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}
