// Package certificate builds display-only certificate records from completed
// signatures. A certificate is a derived artifact: it is never re-verified,
// and trust always flows back to the original signature and keypair.
package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
)

// DefaultIssuer is the issuer label stamped on certificates when the caller
// does not provide one.
const DefaultIssuer = "inkform-signsrv"

const certificateIDLength = 32

// DocumentInfo carries the human-facing document metadata copied onto a
// certificate.
type DocumentInfo struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Type       string `json:"type"`
}

// Certificate is an immutable, human-displayable record of a signature.
type Certificate struct {
	CertificateID string               `json:"certificateId"`
	Document      DocumentInfo         `json:"document"`
	SignerInfo    sigengine.SignerInfo `json:"signerInfo"`
	Algorithm     string               `json:"algorithm"`
	DocumentHash  string               `json:"documentHash"`
	SignatureID   string               `json:"signatureId"`
	KeyID         string               `json:"keyId"`
	SignedAt      string               `json:"signedAt"`
	IssuedAt      time.Time            `json:"issuedAt"`
	Issuer        string               `json:"issuer"`
}

// Issuer constructs certificates. The zero value issues under DefaultIssuer.
type Issuer struct {
	Label string
}

// Issue builds a certificate from a signature. Pure construction: no
// cryptographic operation occurs and nothing is persisted by this call.
func (i Issuer) Issue(sig *sigengine.Signature, info DocumentInfo) (*Certificate, apperrors.Error) {
	if sig == nil {
		return nil, apperrors.New("signature is required").SetStatusCode(400)
	}
	label := i.Label
	if label == "" {
		label = DefaultIssuer
	}
	return &Certificate{
		CertificateID: deriveCertificateID(sig.SignatureID, info.DocumentID),
		Document:      info,
		SignerInfo:    sig.SignerInfo,
		Algorithm:     sig.Algorithm,
		DocumentHash:  sig.DocumentHash,
		SignatureID:   sig.SignatureID,
		KeyID:         sig.KeyID,
		SignedAt:      sig.SignerInfo.Timestamp,
		IssuedAt:      time.Now().UTC(),
		Issuer:        label,
	}, nil
}

func deriveCertificateID(signatureID, documentID string) string {
	sum := sha256.Sum256([]byte(signatureID + ":" + documentID))
	return hex.EncodeToString(sum[:])[:certificateIDLength]
}
