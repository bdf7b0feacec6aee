package sigengine

// Pinned signing parameters. There is no negotiation: every signature this
// service produces or verifies uses RSA-PSS over SHA-256 with a 2048-bit
// modulus, and every canonical payload carries version "1.0".
const (
	Algorithm      = "RSA-SHA256"
	PayloadVersion = "1.0"
	KeyBits        = 2048

	// keyIDLength and signatureIDLength are hex-character prefixes of
	// SHA-256 digests.
	keyIDLength       = 16
	signatureIDLength = 32
)

// SignerInfo carries the signer metadata bound into a signature. Timestamp
// is an RFC3339Nano string captured at signing time; it is kept as a string
// end to end so storage round-trips cannot perturb the signed bytes.
type SignerInfo struct {
	Identity      string `json:"identity"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Timestamp     string `json:"timestamp"`
	SourceAddress string `json:"sourceAddress"`
	ClientContext string `json:"clientContext"`
}

// Signature is an immutable signature over a document. Bytes holds the raw
// RSA-PSS signature; Payload holds the exact canonical payload bytes that
// were signed. Both are persisted verbatim and used as-is at verification.
type Signature struct {
	SignatureID  string     `json:"signatureId"`
	DocumentHash string     `json:"documentHash"`
	SignerInfo   SignerInfo `json:"signerInfo"`
	Algorithm    string     `json:"algorithm"`
	Version      string     `json:"version"`
	KeyID        string     `json:"keyId"`
	Bytes        []byte     `json:"signature"`
	Payload      []byte     `json:"payload,omitempty"`
}

// VerifyResult is the outcome of verifying one signature.
type VerifyResult struct {
	SignatureID string      `json:"signatureId"`
	Valid       bool        `json:"valid"`
	Reason      string      `json:"reason,omitempty"`
	SignerInfo  *SignerInfo `json:"signerInfo,omitempty"`
}

// BatchVerifyResult is the outcome of verifying a document's signature set.
// Each signature is verified independently; one failure never aborts the
// rest.
type BatchVerifyResult struct {
	AllValid   bool            `json:"allValid"`
	ValidCount int             `json:"validCount"`
	Total      int             `json:"total"`
	Results    []*VerifyResult `json:"results"`
}

// Reasons reported in VerifyResult for the non-valid outcomes.
const (
	ReasonDocumentModified  = "document modified after signing"
	ReasonSignatureInvalid  = "signature verification failed"
	ReasonPublicKeyNotFound = "public key not found"
	ReasonInvalidKeyFormat  = "invalid key format"
)
