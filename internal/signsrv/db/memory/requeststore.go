package memory

import (
	"context"
	"sync"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/common/uuid"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// RequestStore is a mutex-guarded in-memory signature-request store.
type RequestStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*models.SignatureRequest
}

// NewRequestStore creates an empty in-memory request store.
func NewRequestStore() *RequestStore {
	return &RequestStore{
		requests: make(map[uuid.UUID]*models.SignatureRequest),
	}
}

func (s *RequestStore) CreateRequest(_ context.Context, req *models.SignatureRequest) apperrors.Error {
	if req == nil || req.RequestID == uuid.Nil || req.DocumentID == "" {
		return dberror.ErrInvalidInput.Msg("request ID and document ID are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.RequestID]; ok {
		return dberror.ErrAlreadyExists.Msg("request already exists")
	}
	cp := copyRequest(req)
	s.requests[req.RequestID] = cp
	return nil
}

func (s *RequestStore) GetRequest(_ context.Context, requestID uuid.UUID) (*models.SignatureRequest, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("signature request not found")
	}
	return copyRequest(req), nil
}

func (s *RequestStore) GetRequestByToken(_ context.Context, token string) (*models.SignatureRequest, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.Token == token {
			return copyRequest(req), nil
		}
	}
	return nil, dberror.ErrNotFound.Msg("signature request not found")
}

func (s *RequestStore) LatestRequestForDocument(_ context.Context, documentID string) (*models.SignatureRequest, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.SignatureRequest
	for _, req := range s.requests {
		if req.DocumentID != documentID {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, dberror.ErrNotFound.Msg("no signature request for document")
	}
	return copyRequest(latest), nil
}

func (s *RequestStore) UpdateRequestStatus(_ context.Context, requestID uuid.UUID, status models.RequestStatus) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return dberror.ErrNotFound.Msg("signature request not found")
	}
	req.Status = status
	return nil
}

func (s *RequestStore) ListRequestsByStatus(_ context.Context, status models.RequestStatus) ([]*models.SignatureRequest, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reqs []*models.SignatureRequest
	for _, req := range s.requests {
		if req.Status == status {
			reqs = append(reqs, copyRequest(req))
		}
	}
	return reqs, nil
}

func copyRequest(req *models.SignatureRequest) *models.SignatureRequest {
	cp := *req
	cp.RequiredSigners = append([]string(nil), req.RequiredSigners...)
	cp.OptionalSigners = append([]string(nil), req.OptionalSigners...)
	return &cp
}
