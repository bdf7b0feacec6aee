package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkform/inkform/internal/common/httpx"
	"github.com/inkform/inkform/internal/signsrv/db/models"
	"github.com/inkform/inkform/internal/signsrv/workflow"
	"github.com/inkform/inkform/pkg/api"
)

// createSignatureRequest creates a signing invitation for a document. The
// requesting identity is the authenticated caller.
func (s *SignServer) createSignatureRequest(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	documentID := chi.URLParam(r, "documentID")
	identity, err := identityFromRequest(r)
	if err != nil {
		return nil, err
	}

	req := &api.CreateRequestRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	created, serr := s.requests.CreateRequest(ctx, documentID, req.RequiredSigners, req.OptionalSigners, identity, req.ExpirationHours)
	if serr != nil {
		return nil, serr
	}

	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/documents/" + documentID + "/requests",
		Response:   requestRsp(created),
	}, nil
}

// validateRequestToken checks a presented token. Invalid and expired
// outcomes are reported in the response body, not as transport errors.
func (s *SignServer) validateRequestToken(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	req := &api.ValidateTokenRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	stored, verr := s.requests.ValidateToken(ctx, req.Token, req.DocumentID)
	if verr != nil {
		if errors.Is(verr, workflow.ErrRequestExpired) ||
			errors.Is(verr, workflow.ErrRequestInvalid) ||
			errors.Is(verr, workflow.ErrRequestClosed) {
			return &httpx.Response{
				StatusCode: http.StatusOK,
				Response:   &api.ValidateTokenResponse{Valid: false, Reason: verr.Error()},
			}, nil
		}
		return nil, verr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.ValidateTokenResponse{
			Valid:   true,
			Request: requestRsp(stored),
		},
	}, nil
}

func requestRsp(req *models.SignatureRequest) *api.SignatureRequestResponse {
	return &api.SignatureRequestResponse{
		RequestID:          req.RequestID.String(),
		DocumentID:         req.DocumentID,
		RequiredSigners:    req.RequiredSigners,
		OptionalSigners:    req.OptionalSigners,
		RequestingIdentity: req.RequestingIdentity,
		Token:              req.Token,
		Status:             string(req.Status),
		CreatedAt:          req.CreatedAt,
		ExpiresAt:          req.ExpiresAt,
	}
}
