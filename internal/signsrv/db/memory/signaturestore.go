package memory

import (
	"context"
	"sync"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// SignatureStore is a mutex-guarded in-memory signature store.
type SignatureStore struct {
	mu         sync.RWMutex
	byDocument map[string][]*models.SignatureRecord
}

// NewSignatureStore creates an empty in-memory signature store.
func NewSignatureStore() *SignatureStore {
	return &SignatureStore{
		byDocument: make(map[string][]*models.SignatureRecord),
	}
}

func (s *SignatureStore) AppendSignature(_ context.Context, rec *models.SignatureRecord) apperrors.Error {
	if rec == nil || rec.SignatureID == "" || rec.DocumentID == "" {
		return dberror.ErrInvalidInput.Msg("signature ID and document ID are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byDocument[rec.DocumentID] {
		if existing.SignatureID == rec.SignatureID {
			return dberror.ErrAlreadyExists.Msg("signature already recorded")
		}
	}
	cp := *rec
	s.byDocument[rec.DocumentID] = append(s.byDocument[rec.DocumentID], &cp)
	return nil
}

func (s *SignatureStore) GetSignature(_ context.Context, documentID, signatureID string) (*models.SignatureRecord, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.byDocument[documentID] {
		if rec.SignatureID == signatureID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, dberror.ErrNotFound.Msg("signature not found")
}

func (s *SignatureStore) ListSignatures(_ context.Context, documentID string) ([]*models.SignatureRecord, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*models.SignatureRecord, 0, len(s.byDocument[documentID]))
	for _, rec := range s.byDocument[documentID] {
		cp := *rec
		recs = append(recs, &cp)
	}
	return recs, nil
}
