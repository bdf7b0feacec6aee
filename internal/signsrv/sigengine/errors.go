package sigengine

import (
	"net/http"

	"github.com/inkform/inkform/internal/common/apperrors"
)

// Base signing error
var (
	ErrSigning apperrors.Error = apperrors.New("signing error").SetStatusCode(http.StatusInternalServerError)
)

var (
	// ErrSigningFailed covers faults in the signing primitive itself. The
	// call is safely retryable.
	ErrSigningFailed apperrors.Error = ErrSigning.New("unable to sign document").SetStatusCode(http.StatusInternalServerError)
	// ErrInvalidKeyFormat indicates a stored key failed structural
	// validation before use.
	ErrInvalidKeyFormat apperrors.Error = ErrSigning.New("invalid key format").SetStatusCode(http.StatusBadRequest)
)
