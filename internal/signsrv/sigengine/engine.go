// Package sigengine is the stateless cryptographic core of the signing
// service: document hashing, RSA-PSS signing over a pinned canonical
// payload, and tamper-evident verification. The engine holds no mutable
// state; calls may run in parallel across documents and signers.
package sigengine

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/inkform/inkform/internal/common/apperrors"
)

// Engine performs document hashing, signing, and verification.
type Engine struct{}

// New creates a signature engine.
func New() *Engine {
	return &Engine{}
}

// pssOptions are the pinned PSS parameters used for both signing and
// verification.
var pssOptions = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthEqualsHash,
	Hash:       crypto.SHA256,
}

// HashDocument computes the hex SHA-256 digest of the document's canonical
// byte representation. Callers are responsible for reproducible byte
// encoding of structured content before calling.
func (e *Engine) HashDocument(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Sign produces a Signature over the document content. The canonical
// payload is built from the document hash and signer metadata, serialized
// in the pinned field order, and signed with RSA-PSS over SHA-256. If the
// signer's Timestamp is unset, the current time is captured. The exact
// payload bytes are attached to the returned Signature so verification can
// run against them verbatim.
func (e *Engine) Sign(content []byte, priv *rsa.PrivateKey, keyID string, info SignerInfo) (*Signature, apperrors.Error) {
	if priv == nil {
		return nil, ErrSigningFailed.Msg("missing private key")
	}
	if info.Timestamp == "" {
		info.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	documentHash := e.HashDocument(content)
	payload, err := canonicalPayload(documentHash, info)
	if err != nil {
		return nil, ErrSigningFailed.Err(err)
	}

	digest := sha256.Sum256(payload)
	sigBytes, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, ErrSigningFailed.Err(err)
	}

	return &Signature{
		SignatureID:  deriveSignatureID(sigBytes),
		DocumentHash: documentHash,
		SignerInfo:   info,
		Algorithm:    Algorithm,
		Version:      PayloadVersion,
		KeyID:        keyID,
		Bytes:        sigBytes,
		Payload:      payload,
	}, nil
}

// Verify checks a signature against the document content and the signer's
// public key. The document hash comparison runs first: it is the cheaper
// check and its failure is the more diagnostic one. Only if the hashes
// match is the cryptographic verification attempted, against the exact
// payload bytes captured at signing time (re-serialized from the
// signature's own stored fields when the original bytes are absent — never
// from caller-supplied data).
func (e *Engine) Verify(content []byte, sig *Signature, pub *rsa.PublicKey) *VerifyResult {
	result := &VerifyResult{SignatureID: sig.SignatureID}

	if pub == nil {
		result.Reason = ReasonPublicKeyNotFound
		return result
	}

	if e.HashDocument(content) != sig.DocumentHash {
		result.Reason = ReasonDocumentModified
		return result
	}

	payload := sig.Payload
	if len(payload) == 0 {
		var err error
		payload, err = canonicalPayload(sig.DocumentHash, sig.SignerInfo)
		if err != nil {
			result.Reason = ReasonSignatureInvalid
			return result
		}
	}

	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig.Bytes, pssOptions); err != nil {
		result.Reason = ReasonSignatureInvalid
		return result
	}

	result.Valid = true
	info := sig.SignerInfo
	result.SignerInfo = &info
	return result
}

// VerifyMany verifies each signature independently against the same
// document content. Public keys are looked up by the signature's key ID; a
// missing or malformed key fails that signature only and never aborts the
// batch.
func (e *Engine) VerifyMany(content []byte, sigs []*Signature, publicKeys map[string]*rsa.PublicKey) *BatchVerifyResult {
	batch := &BatchVerifyResult{
		Total:   len(sigs),
		Results: make([]*VerifyResult, 0, len(sigs)),
	}

	for _, sig := range sigs {
		pub := publicKeys[sig.KeyID]
		result := e.Verify(content, sig, pub)
		if result.Valid {
			batch.ValidCount++
		}
		batch.Results = append(batch.Results, result)
	}

	batch.AllValid = batch.ValidCount == batch.Total && batch.Total > 0
	return batch
}

// deriveSignatureID derives the signature identifier from the signature
// bytes: the first 32 hex characters of their SHA-256 digest.
func deriveSignatureID(sigBytes []byte) string {
	sum := sha256.Sum256(sigBytes)
	return hex.EncodeToString(sum[:])[:signatureIDLength]
}
