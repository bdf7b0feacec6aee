package sigengine

import (
	jsonitor "github.com/json-iterator/go"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// signingPayload is the canonical payload that is hashed and signed. The
// struct field order below is a pinned, versioned contract: serialization
// must produce these fields in exactly this order or verification of
// existing signatures breaks. Do not reorder, rename, or add fields without
// bumping PayloadVersion.
type signingPayload struct {
	DocumentHash string     `json:"documentHash"`
	SignerInfo   SignerInfo `json:"signerInfo"`
	Algorithm    string     `json:"algorithm"`
	Version      string     `json:"version"`
}

// canonicalPayload serializes the canonical signing payload for the given
// document hash and signer. Struct marshaling emits fields in declaration
// order, which fixes the byte layout deterministically; key-sorting
// canonicalization is deliberately not used here because it would break the
// pinned order.
func canonicalPayload(documentHash string, info SignerInfo) ([]byte, error) {
	return json.Marshal(signingPayload{
		DocumentHash: documentHash,
		SignerInfo:   info,
		Algorithm:    Algorithm,
		Version:      PayloadVersion,
	})
}
