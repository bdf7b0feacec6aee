package sigengine

import (
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := GenerateKey()
	require.NoError(t, err)
	return priv
}

func testSigner() SignerInfo {
	return SignerInfo{
		Identity:    "alice",
		DisplayName: "Alice Moreau",
		Email:       "alice@example.com",
		Role:        "account-manager",
	}
}

func TestHashDocumentIsDeterministic(t *testing.T) {
	e := New()
	content := []byte("Contract v1")
	assert.Equal(t, e.HashDocument(content), e.HashDocument(content))
	assert.Len(t, e.HashDocument(content), 64)
	assert.NotEqual(t, e.HashDocument(content), e.HashDocument([]byte("Contract v2")))
}

func TestSignVerifyRoundtrip(t *testing.T) {
	e := New()
	priv := testKey(t)
	content := []byte("Contract v1 — total 100000")

	sig, err := e.Sign(content, priv, "test-key-id", testSigner())
	require.Nil(t, err)
	require.NotNil(t, sig)
	assert.Len(t, sig.SignatureID, 32)
	assert.Equal(t, Algorithm, sig.Algorithm)
	assert.Equal(t, PayloadVersion, sig.Version)
	assert.NotEmpty(t, sig.SignerInfo.Timestamp)
	assert.NotEmpty(t, sig.Payload)

	result := e.Verify(content, sig, &priv.PublicKey)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.SignerInfo)
	assert.Equal(t, "alice", result.SignerInfo.Identity)
}

func TestVerifyDetectsTampering(t *testing.T) {
	e := New()
	priv := testKey(t)
	content := []byte("Contract v1 — total 100000")

	sig, err := e.Sign(content, priv, "test-key-id", testSigner())
	require.Nil(t, err)

	// Flip one character in the copy passed to verify
	tampered := []byte("Contract v1 — total 900000")
	result := e.Verify(tampered, sig, &priv.PublicKey)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonDocumentModified, result.Reason)
	assert.Nil(t, result.SignerInfo)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	e := New()
	priv := testKey(t)
	other := testKey(t)
	content := []byte("shared document")

	sig, err := e.Sign(content, priv, "test-key-id", testSigner())
	require.Nil(t, err)

	result := e.Verify(content, sig, &other.PublicKey)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonSignatureInvalid, result.Reason)
}

func TestVerifyWithoutStoredPayloadReserializes(t *testing.T) {
	e := New()
	priv := testKey(t)
	content := []byte("payload reconstruction")

	sig, err := e.Sign(content, priv, "test-key-id", testSigner())
	require.Nil(t, err)

	// A signature transmitted without its payload bytes must still verify:
	// the canonical payload is re-serialized from the signature's own
	// stored fields.
	sig.Payload = nil
	result := e.Verify(content, sig, &priv.PublicKey)
	assert.True(t, result.Valid)
}

func TestRepeatSigningYieldsDistinctSignatures(t *testing.T) {
	e := New()
	priv := testKey(t)
	content := []byte("same document")

	sig1, err := e.Sign(content, priv, "test-key-id", testSigner())
	require.Nil(t, err)
	sig2, err := e.Sign(content, priv, "test-key-id", testSigner())
	require.Nil(t, err)

	assert.NotEqual(t, sig1.SignatureID, sig2.SignatureID)
	assert.True(t, e.Verify(content, sig1, &priv.PublicKey).Valid)
	assert.True(t, e.Verify(content, sig2, &priv.PublicKey).Valid)
}

func TestVerifyMany(t *testing.T) {
	e := New()
	content := []byte("multi-party contract")

	alice := testKey(t)
	bob := testKey(t)

	alicePEM, aerr := EncodePublicKeyPEM(&alice.PublicKey)
	require.Nil(t, aerr)
	bobPEM, berr := EncodePublicKeyPEM(&bob.PublicKey)
	require.Nil(t, berr)
	aliceKeyID := DeriveKeyID(alicePEM)
	bobKeyID := DeriveKeyID(bobPEM)

	sigAlice, err := e.Sign(content, alice, aliceKeyID, testSigner())
	require.Nil(t, err)
	bobInfo := testSigner()
	bobInfo.Identity = "bob"
	sigBob, err := e.Sign(content, bob, bobKeyID, bobInfo)
	require.Nil(t, err)
	carolInfo := testSigner()
	carolInfo.Identity = "carol"
	sigCarol, err := e.Sign(content, testKey(t), "unknown-key", carolInfo)
	require.Nil(t, err)

	keys := map[string]*rsa.PublicKey{
		aliceKeyID: &alice.PublicKey,
		bobKeyID:   &bob.PublicKey,
	}

	t.Run("all known keys", func(t *testing.T) {
		batch := e.VerifyMany(content, []*Signature{sigAlice, sigBob}, keys)
		assert.True(t, batch.AllValid)
		assert.Equal(t, 2, batch.ValidCount)
		assert.Equal(t, 2, batch.Total)
	})

	t.Run("missing key does not abort the batch", func(t *testing.T) {
		batch := e.VerifyMany(content, []*Signature{sigAlice, sigCarol, sigBob}, keys)
		assert.False(t, batch.AllValid)
		assert.Equal(t, 2, batch.ValidCount)
		assert.Equal(t, 3, batch.Total)
		assert.Equal(t, ReasonPublicKeyNotFound, batch.Results[1].Reason)
		assert.True(t, batch.Results[2].Valid)
	})

	t.Run("empty batch is not all-valid", func(t *testing.T) {
		batch := e.VerifyMany(content, nil, keys)
		assert.False(t, batch.AllValid)
		assert.Equal(t, 0, batch.Total)
	})
}
