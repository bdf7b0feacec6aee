package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/anand-gl/jsoncanonicalizer"
	jsonitr "github.com/json-iterator/go"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

var json = jsonitr.ConfigCompatibleWithStandardLibrary

// tokenLength is the length of a request token in hex characters.
const tokenLength = 64

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// tokenPayload is the request material a token commits to. The token is a
// keyed hash over the canonicalized JSON of this payload, so it can be
// recomputed from the stored request during validation.
type tokenPayload struct {
	RequestID          string   `json:"requestId"`
	DocumentID         string   `json:"documentId"`
	RequiredSigners    []string `json:"requiredSigners"`
	OptionalSigners    []string `json:"optionalSigners"`
	RequestingIdentity string   `json:"requestingIdentity"`
	CreatedAt          string   `json:"createdAt"`
	ExpiresAt          string   `json:"expiresAt"`
}

// tokenTime renders a timestamp for token derivation. Truncation to
// microseconds keeps the token stable across a timestamptz roundtrip.
func tokenTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

// deriveToken computes the request token: SHA-256 over the RFC 8785
// canonical JSON of the request payload concatenated with the server secret,
// hex encoded. Canonicalization makes the token independent of JSON key
// ordering, so recomputation from a stored request always agrees.
func deriveToken(req *models.SignatureRequest, secret string) (string, apperrors.Error) {
	payload := tokenPayload{
		RequestID:          req.RequestID.String(),
		DocumentID:         req.DocumentID,
		RequiredSigners:    req.RequiredSigners,
		OptionalSigners:    req.OptionalSigners,
		RequestingIdentity: req.RequestingIdentity,
		CreatedAt:          tokenTime(req.CreatedAt),
		ExpiresAt:          tokenTime(req.ExpiresAt),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", ErrWorkflow.Msg("unable to serialize request payload").Err(err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", ErrWorkflow.Msg("unable to canonicalize request payload").Err(err)
	}
	sum := sha256.Sum256(append(canonical, []byte(secret)...))
	return hex.EncodeToString(sum[:]), nil
}

// validTokenFormat reports whether token is structurally a request token.
func validTokenFormat(token string) bool {
	return len(token) == tokenLength && tokenPattern.MatchString(token)
}
