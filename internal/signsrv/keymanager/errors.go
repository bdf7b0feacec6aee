package keymanager

import (
	"net/http"

	"github.com/inkform/inkform/internal/common/apperrors"
)

// Base key management error
var (
	ErrKeyManager apperrors.Error = apperrors.New("key manager error").SetStatusCode(http.StatusInternalServerError)
)

var (
	// ErrKeyGenerationFailed covers entropy or library faults during key
	// generation. The call is fatal but safely retryable.
	ErrKeyGenerationFailed apperrors.Error = ErrKeyManager.New("unable to generate keypair").SetStatusCode(http.StatusInternalServerError)
	// ErrNoActiveKey is returned when signing is attempted for an owner
	// without an ACTIVE key. Keys are never auto-provisioned; the caller
	// must generate keys first.
	ErrNoActiveKey apperrors.Error = ErrKeyManager.New("no active key for owner").SetStatusCode(http.StatusPreconditionFailed)
	// ErrKeyNotFound indicates the requested key or owner has no stored
	// keypair at all.
	ErrKeyNotFound apperrors.Error = ErrKeyManager.New("key not found").SetStatusCode(http.StatusNotFound)
	// ErrKeyStorage covers storage faults while reading or writing keys.
	ErrKeyStorage apperrors.Error = ErrKeyManager.New("key storage error").SetStatusCode(http.StatusInternalServerError)
)
