// Package httpx provides HTTP request/response handling utilities shared by
// the signing service handlers. It standardizes JSON responses and maps
// application errors onto HTTP error responses.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
)

// GetRequestData parses a JSON request body into the provided data structure.
// Only POST and PUT carry bodies in this API.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return ErrRequestTooLarge()
		}
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response represents an HTTP response with a status code, an optional
// Location header value, and a payload serialized as JSON.
type Response struct {
	StatusCode int
	Location   string
	Response   any
}

// RequestHandler is the handler signature used by the signing service routes.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp wraps a RequestHandler to provide standardized response and
// error handling. apperrors carry their own status codes; anything else
// becomes an internal server error.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				SendError(w, appErr)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
	})
}
