package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkform/inkform/internal/common/httpx"
	"github.com/inkform/inkform/internal/signsrv/keymanager"
	"github.com/inkform/inkform/pkg/api"
)

// generateKeys provisions a keypair for the owner, or regenerates it.
func (s *SignServer) generateKeys(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	owner := chi.URLParam(r, "owner")
	if owner == "" {
		return nil, httpx.ErrInvalidRequest("owner is required")
	}

	req := &api.GenerateKeysRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	view, err := s.keys.GenerateKeyPair(ctx, owner, keymanager.OwnerInfo{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	}, req.Regenerate)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/keys/" + owner,
		Response:   keyPairRsp(view),
	}, nil
}

// getKeys returns the owner's latest keypair.
func (s *SignServer) getKeys(r *http.Request) (*httpx.Response, error) {
	owner := chi.URLParam(r, "owner")
	if owner == "" {
		return nil, httpx.ErrInvalidRequest("owner is required")
	}

	view, err := s.keys.GetKeys(r.Context(), owner)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   keyPairRsp(view),
	}, nil
}

// revokeKeys revokes the owner's active keypair.
func (s *SignServer) revokeKeys(r *http.Request) (*httpx.Response, error) {
	owner := chi.URLParam(r, "owner")
	if owner == "" {
		return nil, httpx.ErrInvalidRequest("owner is required")
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		return nil, httpx.ErrInvalidRequest("reason is required")
	}

	record, err := s.keys.Revoke(r.Context(), owner, reason)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.RevocationResponse{
			KeyID:         record.KeyID,
			OwnerIdentity: record.OwnerIdentity,
			Reason:        record.Reason,
			RevokedAt:     record.RevokedAt,
		},
	}, nil
}

// getKeyStatistics reports key counts by status and role. Privileged:
// exposed only to callers the gateway marks as administrators.
func (s *SignServer) getKeyStatistics(r *http.Request) (*httpx.Response, error) {
	stats, err := s.keys.Statistics(r.Context())
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.KeyStatisticsResponse{
			TotalKeys:  stats.TotalKeys,
			OwnerCount: stats.OwnerCount,
			ByStatus:   stats.ByStatus,
			ByRole:     stats.ByRole,
		},
	}, nil
}

func keyPairRsp(view *keymanager.KeyPairView) *api.KeyPairResponse {
	return &api.KeyPairResponse{
		KeyID:         view.KeyID,
		OwnerIdentity: view.OwnerIdentity,
		Name:          view.OwnerInfo.Name,
		Email:         view.OwnerInfo.Email,
		Role:          view.OwnerInfo.Role,
		PublicKey:     view.PublicKeyPEM,
		Status:        string(view.Status),
		CreatedAt:     view.CreatedAt,
		RevokedAt:     view.RevokedAt,
		RevokeReason:  view.RevokeReason,
	}
}
