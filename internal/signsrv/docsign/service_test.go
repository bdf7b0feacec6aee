package docsign

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkform/inkform/internal/signsrv/certificate"
	"github.com/inkform/inkform/internal/signsrv/db/memory"
	"github.com/inkform/inkform/internal/signsrv/db/models"
	"github.com/inkform/inkform/internal/signsrv/keymanager"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
	"github.com/inkform/inkform/internal/signsrv/workflow"
)

type testEnv struct {
	svc      *Service
	keys     *keymanager.KeyManager
	requests *workflow.RequestService
	sigStore *memory.SignatureStore
}

func newTestEnv() *testEnv {
	keys := keymanager.New(memory.NewKeyStore(), "test-passwd")
	sigStore := memory.NewSignatureStore()
	requests := workflow.NewRequestService(memory.NewRequestStore(), "test-secret", 0)
	return &testEnv{
		svc:      New(keys, sigStore, requests, nil),
		keys:     keys,
		requests: requests,
		sigStore: sigStore,
	}
}

func provision(t *testing.T, env *testEnv, identity string) {
	t.Helper()
	_, err := env.keys.GenerateKeyPair(context.Background(), identity, keymanager.OwnerInfo{}, false)
	require.NoError(t, err)
}

func TestSignAndVerify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provision(t, env, "alice@example.com")

	content := []byte("Master Services Agreement, revision 4")
	sig, err := env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{
		Identity:    "alice@example.com",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Len(t, sig.SignatureID, 32)

	batch, err := env.svc.Verify(ctx, "doc-1", content, "")
	require.NoError(t, err)
	assert.True(t, batch.AllValid)
	assert.Equal(t, 1, batch.ValidCount)

	// single-signature verification by ID
	batch, err = env.svc.Verify(ctx, "doc-1", content, sig.SignatureID)
	require.NoError(t, err)
	assert.True(t, batch.AllValid)
}

func TestSignRequiresActiveKey(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Sign(context.Background(), "doc-1", []byte("content"), sigengine.SignerInfo{
		Identity: "nobody@example.com",
	})
	assert.ErrorIs(t, err, keymanager.ErrNoActiveKey)
}

func TestSignInputValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.svc.Sign(ctx, "", []byte("x"), sigengine.SignerInfo{Identity: "a"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Sign(ctx, "doc-1", []byte("x"), sigengine.SignerInfo{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Sign(ctx, "doc-1", nil, sigengine.SignerInfo{Identity: "a"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provision(t, env, "alice@example.com")

	content := []byte("Contract v1 — total 100000")
	_, err := env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{Identity: "alice@example.com"})
	require.NoError(t, err)

	tampered := []byte("Contract v1 — total 900000")
	batch, err := env.svc.Verify(ctx, "doc-1", tampered, "")
	require.NoError(t, err)
	assert.False(t, batch.AllValid)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, sigengine.ReasonDocumentModified, batch.Results[0].Reason)
}

func TestVerifyWithRevokedKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provision(t, env, "alice@example.com")

	content := []byte("signed before revocation")
	_, err := env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{Identity: "alice@example.com"})
	require.NoError(t, err)

	_, err = env.keys.Revoke(ctx, "alice@example.com", "rotation")
	require.NoError(t, err)

	// existing signatures still verify after the key is revoked
	batch, err := env.svc.Verify(ctx, "doc-1", content, "")
	require.NoError(t, err)
	assert.True(t, batch.AllValid)

	// but new signing is blocked
	_, err = env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{Identity: "alice@example.com"})
	assert.ErrorIs(t, err, keymanager.ErrNoActiveKey)
}

func TestVerifyUnknownDocument(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Verify(context.Background(), "doc-none", []byte("x"), "")
	assert.ErrorIs(t, err, ErrNoSignatures)

	_, err = env.svc.Verify(context.Background(), "doc-none", []byte("x"), "deadbeef")
	assert.ErrorIs(t, err, ErrSignatureNotFound)
}

func TestWorkflowStatusAndRequestCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provision(t, env, "alice@example.com")
	provision(t, env, "bob@example.com")

	req, err := env.requests.CreateRequest(ctx, "doc-1", []string{"alice@example.com", "bob@example.com"}, []string{"carol@example.com"}, "ops@example.com", 24)
	require.NoError(t, err)

	content := []byte("quarterly report")
	_, err = env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{Identity: "alice@example.com"})
	require.NoError(t, err)

	st, err := env.svc.WorkflowStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, st.Status)
	assert.False(t, st.AllRequiredSigned)
	assert.Equal(t, []string{"bob@example.com"}, st.PendingSigners)
	assert.Equal(t, 33, st.CompletionPercentage)

	// request still pending after a partial roster
	stored, rerr := env.requests.LatestForDocument(ctx, "doc-1")
	require.NoError(t, rerr)
	assert.Equal(t, models.RequestStatusPending, stored.Status)

	_, err = env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{Identity: "bob@example.com"})
	require.NoError(t, err)

	st, err = env.svc.WorkflowStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, st.Status)
	assert.True(t, st.AllRequiredSigned)
	assert.Empty(t, st.PendingSigners)

	// the second signature completed the request
	stored, rerr = env.requests.LatestForDocument(ctx, "doc-1")
	require.NoError(t, rerr)
	assert.Equal(t, models.RequestStatusCompleted, stored.Status)
	_ = req
}

func TestWorkflowStatusWithoutRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provision(t, env, "alice@example.com")

	_, err := env.svc.Sign(ctx, "doc-1", []byte("ad-hoc signing"), sigengine.SignerInfo{Identity: "alice@example.com"})
	require.NoError(t, err)

	st, err := env.svc.WorkflowStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.SignatureCount)
	assert.Equal(t, []string{"alice@example.com"}, st.SignedIdentities)
}

func TestIssueCertificate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provision(t, env, "alice@example.com")

	sig, err := env.svc.Sign(ctx, "doc-1", []byte("content"), sigengine.SignerInfo{
		Identity:    "alice@example.com",
		DisplayName: "Alice",
	})
	require.NoError(t, err)

	cert, err := env.svc.IssueCertificate(ctx, "doc-1", sig.SignatureID, certificate.DocumentInfo{
		Title: "Test Document",
		Type:  "contract",
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", cert.Document.DocumentID)
	assert.Equal(t, sig.SignatureID, cert.SignatureID)
	assert.Equal(t, "Alice", cert.SignerInfo.DisplayName)

	_, err = env.svc.IssueCertificate(ctx, "doc-1", "unknown", certificate.DocumentInfo{})
	assert.ErrorIs(t, err, ErrSignatureNotFound)
}

func TestConcurrentSigners(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	const signers = 8
	identities := make([]string, signers)
	for i := range identities {
		identities[i] = fmt.Sprintf("signer%d@example.com", i)
		provision(t, env, identities[i])
	}

	content := []byte("board resolution")
	var wg sync.WaitGroup
	for _, identity := range identities {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.svc.Sign(ctx, "doc-1", content, sigengine.SignerInfo{Identity: id})
			assert.NoError(t, err)
		}(identity)
	}
	wg.Wait()

	// no signature lost under concurrent appends
	sigs, err := env.svc.ListSignatures(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, sigs, signers)

	batch, err := env.svc.Verify(ctx, "doc-1", content, "")
	require.NoError(t, err)
	assert.True(t, batch.AllValid)
	assert.Equal(t, signers, batch.ValidCount)
}
