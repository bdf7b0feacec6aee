package sigengine

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"

	"github.com/inkform/inkform/internal/common/apperrors"
)

// GenerateKey generates a fresh RSA keypair at the pinned modulus size.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, KeyBits)
}

// EncodePublicKeyPEM encodes an RSA public key as a PKIX PEM block. The PEM
// encoding is the canonical textual form key IDs are derived from.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, apperrors.Error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, ErrInvalidKeyFormat.Err(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParsePublicKeyPEM parses a PEM-encoded RSA public key, validating its
// structure before use.
func ParsePublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, apperrors.Error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, ErrInvalidKeyFormat.Msg("not a PEM public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidKeyFormat.Err(err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKeyFormat.Msg("not an RSA public key")
	}
	return rsaPub, nil
}

// EncodePrivateKeyPEM encodes an RSA private key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) ([]byte, apperrors.Error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, ErrInvalidKeyFormat.Err(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM parses a PEM-encoded RSA private key.
func ParsePrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, apperrors.Error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, ErrInvalidKeyFormat.Msg("not a PEM private key")
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidKeyFormat.Err(err)
	}
	rsaPriv, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidKeyFormat.Msg("not an RSA private key")
	}
	return rsaPriv, nil
}

// DeriveKeyID derives the stable key identifier from the PEM encoding of a
// public key: the first 16 hex characters of its SHA-256 digest.
func DeriveKeyID(publicKeyPEM []byte) string {
	sum := sha256.Sum256(publicKeyPEM)
	return hex.EncodeToString(sum[:])[:keyIDLength]
}
