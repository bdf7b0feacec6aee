package keymanager

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkform/inkform/internal/signsrv/auditlog"
	"github.com/inkform/inkform/internal/signsrv/db/memory"
	"github.com/inkform/inkform/internal/signsrv/db/models"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
)

const testPasswd = "test-encryption-passwd"

func newTestManager() (*KeyManager, *memory.KeyStore) {
	store := memory.NewKeyStore()
	return New(store, testPasswd), store
}

func TestGenerateKeyPair(t *testing.T) {
	ctx := context.Background()
	km, _ := newTestManager()

	view, err := km.GenerateKeyPair(ctx, "alice@example.com", OwnerInfo{
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  "approver",
	}, false)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Len(t, view.KeyID, 16)
	assert.Equal(t, models.KeyStatusActive, view.Status)
	assert.Equal(t, "Alice", view.OwnerInfo.Name)
	assert.Contains(t, view.PublicKeyPEM, "BEGIN PUBLIC KEY")
	assert.NotContains(t, view.PublicKeyPEM, "PRIVATE")

	// idempotent without regenerate
	again, err := km.GenerateKeyPair(ctx, "alice@example.com", OwnerInfo{}, false)
	require.NoError(t, err)
	assert.Equal(t, view.KeyID, again.KeyID)
}

func TestGenerateKeyPairRegenerate(t *testing.T) {
	ctx := context.Background()
	km, store := newTestManager()

	first, err := km.GenerateKeyPair(ctx, "bob@example.com", OwnerInfo{Role: "signer"}, false)
	require.NoError(t, err)

	second, err := km.GenerateKeyPair(ctx, "bob@example.com", OwnerInfo{Role: "signer"}, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.KeyID, second.KeyID)
	assert.Equal(t, models.KeyStatusActive, second.Status)

	old, gerr := store.GetKeyPairByKeyID(ctx, first.KeyID)
	require.NoError(t, gerr)
	assert.Equal(t, models.KeyStatusRevoked, old.Status)
	assert.Equal(t, RevokeReasonRegeneration, old.RevokeReason)
	require.NotNil(t, old.RevokedAt)
}

func TestGenerateKeyPairEmptyOwner(t *testing.T) {
	km, _ := newTestManager()
	_, err := km.GenerateKeyPair(context.Background(), "", OwnerInfo{}, false)
	require.Error(t, err)
}

func TestGetKeys(t *testing.T) {
	ctx := context.Background()
	km, _ := newTestManager()

	_, err := km.GetKeys(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	created, err := km.GenerateKeyPair(ctx, "carol@example.com", OwnerInfo{}, false)
	require.NoError(t, err)

	got, err := km.GetKeys(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.KeyID, got.KeyID)

	// after revocation GetKeys still returns the latest key
	_, err = km.Revoke(ctx, "carol@example.com", "left the org")
	require.NoError(t, err)
	got, err = km.GetKeys(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.KeyStatusRevoked, got.Status)
	assert.Equal(t, "left the org", got.RevokeReason)
}

func TestGetPrivateKeyForSigning(t *testing.T) {
	ctx := context.Background()
	km, _ := newTestManager()

	_, _, err := km.GetPrivateKeyForSigning(ctx, "dan@example.com")
	assert.ErrorIs(t, err, ErrNoActiveKey)

	view, err := km.GenerateKeyPair(ctx, "dan@example.com", OwnerInfo{}, false)
	require.NoError(t, err)

	priv, keyID, err := km.GetPrivateKeyForSigning(ctx, "dan@example.com")
	require.NoError(t, err)
	require.NotNil(t, priv)
	assert.Equal(t, view.KeyID, keyID)

	// the fetched private key must pair with the stored public key
	pub, err := km.GetPublicKeyByKeyID(ctx, keyID)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))

	// a revoked key is unusable for signing
	_, err = km.Revoke(ctx, "dan@example.com", "compromised")
	require.NoError(t, err)
	_, _, err = km.GetPrivateKeyForSigning(ctx, "dan@example.com")
	assert.ErrorIs(t, err, ErrNoActiveKey)
}

func TestGetPublicKeyByKeyIDSurvivesRevocation(t *testing.T) {
	ctx := context.Background()
	km, _ := newTestManager()

	view, err := km.GenerateKeyPair(ctx, "erin@example.com", OwnerInfo{}, false)
	require.NoError(t, err)

	_, err = km.Revoke(ctx, "erin@example.com", "rotation")
	require.NoError(t, err)

	// existing signatures must remain verifiable, so public key lookup
	// by ID ignores revocation status
	pub, err := km.GetPublicKeyByKeyID(ctx, view.KeyID)
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, view.KeyID, sigengine.DeriveKeyID([]byte(view.PublicKeyPEM)))
}

func TestRevokeNoActiveKey(t *testing.T) {
	km, _ := newTestManager()
	_, err := km.Revoke(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	km, _ := newTestManager()

	_, err := km.GenerateKeyPair(ctx, "a@example.com", OwnerInfo{Role: "approver"}, false)
	require.NoError(t, err)
	_, err = km.GenerateKeyPair(ctx, "b@example.com", OwnerInfo{Role: "signer"}, false)
	require.NoError(t, err)
	_, err = km.GenerateKeyPair(ctx, "a@example.com", OwnerInfo{Role: "approver"}, true)
	require.NoError(t, err)

	stats, err := km.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalKeys)
	assert.Equal(t, 2, stats.OwnerCount)
	assert.Equal(t, 2, stats.ByStatus[string(models.KeyStatusActive)])
	assert.Equal(t, 1, stats.ByStatus[string(models.KeyStatusRevoked)])
	assert.Equal(t, 2, stats.ByRole["approver"])
	assert.Equal(t, 1, stats.ByRole["signer"])

	owners, err := km.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, owners)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	km, store := newTestManager()

	view, err := km.GenerateKeyPair(ctx, "old@example.com", OwnerInfo{}, false)
	require.NoError(t, err)
	_, err = km.GenerateKeyPair(ctx, "fresh@example.com", OwnerInfo{}, false)
	require.NoError(t, err)

	// age the first key's revocation past retention
	longAgo := time.Now().UTC().Add(-120 * 24 * time.Hour)
	require.NoError(t, store.RevokeKeyPair(ctx, view.KeyID, "rotation", longAgo))

	removed, err := km.Cleanup(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, gerr := store.GetKeyPairByKeyID(ctx, view.KeyID)
	assert.Error(t, gerr)

	// active keys are never cleaned up
	got, err := km.GetKeys(ctx, "fresh@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.KeyStatusActive, got.Status)
}

func TestAuditTrailCoversKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	km, store := newTestManager()

	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	_, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	audit, err := auditlog.NewWriter(logPath, 1, privKey)
	require.NoError(t, err)
	km.SetAuditLog(audit)

	_, gerr := km.GenerateKeyPair(ctx, "alice@example.com", OwnerInfo{}, false)
	require.NoError(t, gerr)
	_, gerr = km.GenerateKeyPair(ctx, "alice@example.com", OwnerInfo{}, true)
	require.NoError(t, gerr)
	_, rerr := km.Revoke(ctx, "alice@example.com", "left the org")
	require.NoError(t, rerr)

	// age both revocations past retention so cleanup deletes the keys
	longAgo := time.Now().UTC().Add(-120 * 24 * time.Hour)
	keys, lerr := store.ListKeyPairs(ctx)
	require.NoError(t, lerr)
	for _, key := range keys {
		require.NoError(t, store.RevokeKeyPair(ctx, key.KeyID, "aged", longAgo))
	}
	removed, cerr := km.Cleanup(ctx, 90*24*time.Hour)
	require.NoError(t, cerr)
	require.Equal(t, 2, removed)

	require.NoError(t, audit.Close())
	data, rderr := os.ReadFile(logPath)
	require.NoError(t, rderr)

	var events []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry auditlog.Entry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		events = append(events, entry.Payload.Event)
	}
	assert.Equal(t, []string{
		auditlog.EventKeyGenerated,
		auditlog.EventKeyRevoked,
		auditlog.EventKeyGenerated,
		auditlog.EventKeyRevoked,
		auditlog.EventKeyDeleted,
		auditlog.EventKeyDeleted,
	}, events)
}

func TestConcurrentGenerateSingleKey(t *testing.T) {
	ctx := context.Background()
	km, store := newTestManager()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := km.GenerateKeyPair(ctx, "racer@example.com", OwnerInfo{}, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	keys, err := store.ListKeyPairs(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
