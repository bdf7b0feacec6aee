package sigengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The canonical payload byte layout is a versioned contract: verifiers must
// be able to reconstruct it byte for byte from stored fields. This test
// locks the serialization; if it fails, existing signatures no longer
// verify.
func TestCanonicalPayloadFieldOrder(t *testing.T) {
	info := SignerInfo{
		Identity:      "alice",
		DisplayName:   "Alice Moreau",
		Email:         "alice@example.com",
		Role:          "account-manager",
		Timestamp:     "2026-02-11T09:30:00.000000001Z",
		SourceAddress: "203.0.113.7",
		ClientContext: "web",
	}

	payload, err := canonicalPayload("abc123", info)
	require.NoError(t, err)

	expected := `{"documentHash":"abc123",` +
		`"signerInfo":{"identity":"alice","displayName":"Alice Moreau",` +
		`"email":"alice@example.com","role":"account-manager",` +
		`"timestamp":"2026-02-11T09:30:00.000000001Z",` +
		`"sourceAddress":"203.0.113.7","clientContext":"web"},` +
		`"algorithm":"RSA-SHA256","version":"1.0"}`
	assert.Equal(t, expected, string(payload))
}

func TestCanonicalPayloadIsReproducible(t *testing.T) {
	info := SignerInfo{Identity: "bob", Timestamp: "2026-02-11T09:30:00Z"}

	a, err := canonicalPayload("hash", info)
	require.NoError(t, err)
	b, err := canonicalPayload("hash", info)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKeyIDDerivation(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	pemBytes, aerr := EncodePublicKeyPEM(&priv.PublicKey)
	require.Nil(t, aerr)

	keyID := DeriveKeyID(pemBytes)
	assert.Len(t, keyID, 16)
	assert.Equal(t, keyID, DeriveKeyID(pemBytes))
}

func TestKeyPEMRoundtrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	pubPEM, aerr := EncodePublicKeyPEM(&priv.PublicKey)
	require.Nil(t, aerr)
	pub, aerr := ParsePublicKeyPEM(pubPEM)
	require.Nil(t, aerr)
	assert.True(t, priv.PublicKey.Equal(pub))

	privPEM, aerr := EncodePrivateKeyPEM(priv)
	require.Nil(t, aerr)
	parsed, aerr := ParsePrivateKeyPEM(privPEM)
	require.Nil(t, aerr)
	assert.True(t, priv.Equal(parsed))
}

func TestParsePublicKeyPEMRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKeyPEM([]byte("not a key"))
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)

	_, err = ParsePublicKeyPEM([]byte("-----BEGIN PUBLIC KEY-----\nZm9v\n-----END PUBLIC KEY-----\n"))
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}
