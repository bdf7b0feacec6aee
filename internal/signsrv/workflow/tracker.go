// Package workflow derives document signing status from a signer roster and
// the collected signatures, and manages time-bound signature requests.
package workflow

import (
	"math"
	"time"

	"github.com/inkform/inkform/internal/signsrv/db/models"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
)

// WorkflowStatus is the derived completion state of a document's signing
// process. It is computed on demand and never stored.
type WorkflowStatus struct {
	DocumentID           string   `json:"documentId"`
	Status               string   `json:"status"` // COMPLETED or PENDING
	AllRequiredSigned    bool     `json:"allRequiredSigned"`
	CompletionPercentage int      `json:"completionPercentage"`
	RequiredSigners      []string `json:"requiredSigners"`
	OptionalSigners      []string `json:"optionalSigners"`
	SignedIdentities     []string `json:"signedIdentities"`
	PendingSigners       []string `json:"pendingSigners"`
	SignatureCount       int      `json:"signatureCount"`
	LastSignedAt         string   `json:"lastSignedAt,omitempty"`
}

const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
)

// Status computes the workflow status for a document from its roster and
// collected signatures. Signer identity matching is exact. A roster with no
// signers at all reports 100% completion.
func Status(documentID string, collected []*sigengine.Signature, requiredSigners, optionalSigners []string) *WorkflowStatus {
	signed := make(map[string]bool)
	var signedIdentities []string
	var lastSignedAt string
	var lastSigned time.Time
	for _, sig := range collected {
		if !signed[sig.SignerInfo.Identity] {
			signed[sig.SignerInfo.Identity] = true
			signedIdentities = append(signedIdentities, sig.SignerInfo.Identity)
		}
		if t, err := time.Parse(time.RFC3339Nano, sig.SignerInfo.Timestamp); err == nil {
			if lastSignedAt == "" || t.After(lastSigned) {
				lastSigned = t
				lastSignedAt = sig.SignerInfo.Timestamp
			}
		}
	}

	var requiredSigned, pending []string
	for _, signer := range requiredSigners {
		if signed[signer] {
			requiredSigned = append(requiredSigned, signer)
		} else {
			pending = append(pending, signer)
		}
	}

	rosterSize := len(requiredSigners) + len(optionalSigners)
	completion := 100
	if rosterSize > 0 {
		completion = int(math.Round(100 * float64(len(signedIdentities)) / float64(rosterSize)))
	}

	allRequired := len(requiredSigned) == len(requiredSigners)
	status := StatusPending
	if allRequired {
		status = StatusCompleted
	}

	return &WorkflowStatus{
		DocumentID:           documentID,
		Status:               status,
		AllRequiredSigned:    allRequired,
		CompletionPercentage: completion,
		RequiredSigners:      requiredSigners,
		OptionalSigners:      optionalSigners,
		SignedIdentities:     signedIdentities,
		PendingSigners:       pending,
		SignatureCount:       len(collected),
		LastSignedAt:         lastSignedAt,
	}
}

// StatusForRequest computes workflow status using the roster of a stored
// signature request.
func StatusForRequest(req *models.SignatureRequest, collected []*sigengine.Signature) *WorkflowStatus {
	return Status(req.DocumentID, collected, req.RequiredSigners, req.OptionalSigners)
}
