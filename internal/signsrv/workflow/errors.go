package workflow

import (
	"net/http"

	"github.com/inkform/inkform/internal/common/apperrors"
)

var (
	// ErrWorkflow is the base error for the workflow package.
	ErrWorkflow apperrors.Error = apperrors.New("workflow error").SetStatusCode(http.StatusInternalServerError)

	// ErrRequestInvalid indicates a malformed or unrecognized request token.
	ErrRequestInvalid apperrors.Error = ErrWorkflow.New("invalid signature request").SetStatusCode(http.StatusBadRequest)

	// ErrRequestExpired indicates the request's expiry instant has passed.
	// Expired requests are never resurrected.
	ErrRequestExpired apperrors.Error = ErrWorkflow.New("signature request expired").SetStatusCode(http.StatusGone)

	// ErrRequestNotFound indicates no stored request matches the lookup.
	ErrRequestNotFound apperrors.Error = ErrWorkflow.New("signature request not found").SetStatusCode(http.StatusNotFound)

	// ErrRequestClosed indicates the request is no longer PENDING and cannot
	// transition further.
	ErrRequestClosed apperrors.Error = ErrWorkflow.New("signature request already closed").SetStatusCode(http.StatusConflict)

	// ErrNotRequester indicates an identity other than the requester attempted
	// a requester-only action.
	ErrNotRequester apperrors.Error = ErrWorkflow.New("only the requesting identity may cancel a request").SetStatusCode(http.StatusForbidden)

	// ErrRequestStorage wraps store failures.
	ErrRequestStorage apperrors.Error = ErrWorkflow.New("request storage error").SetStatusCode(http.StatusInternalServerError)
)
