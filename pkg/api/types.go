// Package api defines the request and response types of the signing service
// HTTP API.
package api

import "time"

// SignerInfoRequest carries signer metadata on a sign call. Identity is
// taken from the authenticated request, not this payload.
type SignerInfoRequest struct {
	DisplayName   string `json:"displayName"`
	Email         string `json:"email" validate:"omitempty,email"`
	Role          string `json:"role"`
	ClientContext string `json:"clientContext"`
}

// GenerateKeysRequest provisions (or regenerates) an owner's keypair.
type GenerateKeysRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email" validate:"omitempty,email"`
	Role       string `json:"role"`
	Regenerate bool   `json:"regenerate"`
}

// KeyPairResponse is the public view of a keypair.
type KeyPairResponse struct {
	KeyID         string     `json:"keyId"`
	OwnerIdentity string     `json:"ownerIdentity"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Role          string     `json:"role,omitempty"`
	PublicKey     string     `json:"publicKey"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty"`
	RevokeReason  string     `json:"revokeReason,omitempty"`
}

// RevocationResponse reports a completed revocation.
type RevocationResponse struct {
	KeyID         string    `json:"keyId"`
	OwnerIdentity string    `json:"ownerIdentity"`
	Reason        string    `json:"reason"`
	RevokedAt     time.Time `json:"revokedAt"`
}

// KeyStatisticsResponse summarizes the stored key population.
type KeyStatisticsResponse struct {
	TotalKeys  int            `json:"totalKeys"`
	OwnerCount int            `json:"ownerCount"`
	ByStatus   map[string]int `json:"byStatus"`
	ByRole     map[string]int `json:"byRole"`
}

// SignDocumentRequest signs document content. Content is base64 in JSON
// ([]byte marshaling); the service signs the decoded bytes.
type SignDocumentRequest struct {
	Content    []byte            `json:"content" validate:"required"`
	SignerInfo SignerInfoRequest `json:"signerInfo"`
}

// SignatureResponse describes a produced or stored signature.
type SignatureResponse struct {
	SignatureID  string `json:"signatureId"`
	DocumentID   string `json:"documentId"`
	DocumentHash string `json:"documentHash"`
	Signer       string `json:"signer"`
	SignedAt     string `json:"signedAt"`
	KeyID        string `json:"keyId"`
	Algorithm    string `json:"algorithm"`
	Version      string `json:"version"`
	Signature    []byte `json:"signature"`
}

// VerifyDocumentRequest verifies the presented content against one stored
// signature (SignatureID set) or all of them.
type VerifyDocumentRequest struct {
	Content     []byte `json:"content" validate:"required"`
	SignatureID string `json:"signatureId"`
}

// VerifyResultResponse is the outcome for one signature.
type VerifyResultResponse struct {
	SignatureID string `json:"signatureId"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	Signer      string `json:"signer,omitempty"`
}

// VerifyDocumentResponse is the outcome of a verify call.
type VerifyDocumentResponse struct {
	DocumentID string                 `json:"documentId"`
	AllValid   bool                   `json:"allValid"`
	ValidCount int                    `json:"validCount"`
	Total      int                    `json:"total"`
	Results    []VerifyResultResponse `json:"results"`
}

// WorkflowStatusResponse is the derived signing status of a document.
type WorkflowStatusResponse struct {
	DocumentID           string   `json:"documentId"`
	Status               string   `json:"status"`
	AllRequiredSigned    bool     `json:"allRequiredSigned"`
	CompletionPercentage int      `json:"completionPercentage"`
	RequiredSigners      []string `json:"requiredSigners"`
	OptionalSigners      []string `json:"optionalSigners"`
	SignedIdentities     []string `json:"signedIdentities"`
	PendingSigners       []string `json:"pendingSigners"`
	SignatureCount       int      `json:"signatureCount"`
	LastSignedAt         string   `json:"lastSignedAt,omitempty"`
}

// CreateRequestRequest creates a signature request for a document.
type CreateRequestRequest struct {
	RequiredSigners []string `json:"requiredSigners" validate:"required,min=1"`
	OptionalSigners []string `json:"optionalSigners"`
	ExpirationHours int      `json:"expirationHours" validate:"required,gt=0"`
}

// SignatureRequestResponse describes a stored signature request.
type SignatureRequestResponse struct {
	RequestID          string    `json:"requestId"`
	DocumentID         string    `json:"documentId"`
	RequiredSigners    []string  `json:"requiredSigners"`
	OptionalSigners    []string  `json:"optionalSigners"`
	RequestingIdentity string    `json:"requestingIdentity"`
	Token              string    `json:"token"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// ValidateTokenRequest validates a presented request token.
type ValidateTokenRequest struct {
	Token      string `json:"token" validate:"required"`
	DocumentID string `json:"documentId" validate:"required"`
}

// ValidateTokenResponse reports token validity. Reason is set when the
// token is invalid or expired.
type ValidateTokenResponse struct {
	Valid   bool                      `json:"valid"`
	Reason  string                    `json:"reason,omitempty"`
	Request *SignatureRequestResponse `json:"request,omitempty"`
}
