package docsign

import (
	"net/http"

	"github.com/inkform/inkform/internal/common/apperrors"
)

var (
	// ErrDocSign is the base error for the document signing service.
	ErrDocSign apperrors.Error = apperrors.New("document signing error").SetStatusCode(http.StatusInternalServerError)

	// ErrSignatureNotFound indicates no stored signature matches the lookup.
	ErrSignatureNotFound apperrors.Error = ErrDocSign.New("signature not found").SetStatusCode(http.StatusNotFound)

	// ErrNoSignatures indicates a document has no collected signatures.
	ErrNoSignatures apperrors.Error = ErrDocSign.New("no signatures for document").SetStatusCode(http.StatusNotFound)

	// ErrSignatureStorage wraps store failures.
	ErrSignatureStorage apperrors.Error = ErrDocSign.New("signature storage error").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidInput indicates missing or malformed call parameters.
	ErrInvalidInput apperrors.Error = ErrDocSign.New("invalid input").SetStatusCode(http.StatusBadRequest)
)
