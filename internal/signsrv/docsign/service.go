// Package docsign is the application service tying key management, the
// signature engine, and workflow tracking together into document-level
// operations: sign, verify, workflow status, and certificate issuance.
package docsign

import (
	"context"
	"crypto/rsa"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/signsrv/auditlog"
	"github.com/inkform/inkform/internal/signsrv/certificate"
	"github.com/inkform/inkform/internal/signsrv/db"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
	"github.com/inkform/inkform/internal/signsrv/keymanager"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
	"github.com/inkform/inkform/internal/signsrv/workflow"
)

const lockStripes = 64

// Service performs document-level signing operations. Signature appends are
// serialized per document so concurrent signers never lose a signature or
// observe a stale workflow status mid-append.
type Service struct {
	keys     *keymanager.KeyManager
	engine   *sigengine.Engine
	sigStore db.SignatureStore
	requests *workflow.RequestService
	issuer   certificate.Issuer
	audit    *auditlog.Writer
	locks    [lockStripes]sync.Mutex
}

// New creates the document signing service. audit may be nil to disable
// audit logging.
func New(keys *keymanager.KeyManager, sigStore db.SignatureStore, requests *workflow.RequestService, audit *auditlog.Writer) *Service {
	return &Service{
		keys:     keys,
		engine:   sigengine.New(),
		sigStore: sigStore,
		requests: requests,
		audit:    audit,
	}
}

func (s *Service) lockFor(documentID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(documentID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Sign signs document content on behalf of the signer identified in info.
// The signer must have an ACTIVE key; signing never provisions one. When the
// signature completes the roster of the document's latest pending request,
// that request is marked COMPLETED.
func (s *Service) Sign(ctx context.Context, documentID string, content []byte, info sigengine.SignerInfo) (*sigengine.Signature, apperrors.Error) {
	if documentID == "" {
		return nil, ErrInvalidInput.Msg("document ID is required")
	}
	if info.Identity == "" {
		return nil, ErrInvalidInput.Msg("signer identity is required")
	}
	if len(content) == 0 {
		return nil, ErrInvalidInput.Msg("document content is required")
	}

	priv, keyID, err := s.keys.GetPrivateKeyForSigning(ctx, info.Identity)
	if err != nil {
		return nil, err
	}

	mu := s.lockFor(documentID)
	mu.Lock()
	defer mu.Unlock()

	sig, err := s.engine.Sign(content, priv, keyID, info)
	if err != nil {
		return nil, err
	}

	rec := recordFromSignature(documentID, sig)
	if serr := s.sigStore.AppendSignature(ctx, rec); serr != nil {
		return nil, ErrSignatureStorage.Err(serr)
	}

	log.Ctx(ctx).Info().
		Str("document_id", documentID).
		Str("signer", info.Identity).
		Str("signature_id", sig.SignatureID).
		Msg("signed document")

	s.record(auditlog.Event{
		Event:          auditlog.EventDocumentSigned,
		DocumentID:     documentID,
		SignerIdentity: info.Identity,
		KeyID:          keyID,
		SignatureID:    sig.SignatureID,
	})

	s.completeRequestIfDone(ctx, documentID)
	return sig, nil
}

// completeRequestIfDone marks the document's latest PENDING request
// COMPLETED once all required signers have signed. Called with the document
// lock held.
func (s *Service) completeRequestIfDone(ctx context.Context, documentID string) {
	if s.requests == nil {
		return
	}
	req, err := s.requests.LatestForDocument(ctx, documentID)
	if err != nil || req.Status != models.RequestStatusPending {
		return
	}
	sigs, lerr := s.collectedSignatures(ctx, documentID)
	if lerr != nil {
		return
	}
	st := workflow.StatusForRequest(req, sigs)
	if !st.AllRequiredSigned {
		return
	}
	if cerr := s.requests.MarkCompleted(ctx, req.RequestID); cerr != nil {
		log.Ctx(ctx).Error().Err(cerr).Str("request_id", req.RequestID.String()).Msg("unable to complete request")
		return
	}
	s.record(auditlog.Event{
		Event:      auditlog.EventRequestClosed,
		DocumentID: documentID,
		RequestID:  req.RequestID.String(),
		Outcome:    string(models.RequestStatusCompleted),
	})
}

// Verify verifies document signatures against the presented content. With a
// signature ID it verifies that one signature; with an empty ID it verifies
// every signature collected for the document. Signatures made with
// since-revoked keys still verify; revocation only blocks future signing.
func (s *Service) Verify(ctx context.Context, documentID string, content []byte, signatureID string) (*sigengine.BatchVerifyResult, apperrors.Error) {
	if documentID == "" {
		return nil, ErrInvalidInput.Msg("document ID is required")
	}

	var sigs []*sigengine.Signature
	if signatureID != "" {
		rec, err := s.sigStore.GetSignature(ctx, documentID, signatureID)
		if err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				return nil, ErrSignatureNotFound
			}
			return nil, ErrSignatureStorage.Err(err)
		}
		sigs = []*sigengine.Signature{signatureFromRecord(rec)}
	} else {
		var err apperrors.Error
		sigs, err = s.collectedSignatures(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			return nil, ErrNoSignatures
		}
	}

	publicKeys := make(map[string]*rsa.PublicKey)
	for _, sig := range sigs {
		if _, ok := publicKeys[sig.KeyID]; ok {
			continue
		}
		pub, err := s.keys.GetPublicKeyByKeyID(ctx, sig.KeyID)
		if err != nil {
			// a missing key fails that signature, not the batch
			continue
		}
		publicKeys[sig.KeyID] = pub
	}

	batch := s.engine.VerifyMany(content, sigs, publicKeys)

	outcome := "invalid"
	if batch.AllValid {
		outcome = "valid"
	}
	s.record(auditlog.Event{
		Event:      auditlog.EventVerification,
		DocumentID: documentID,
		Outcome:    outcome,
	})
	return batch, nil
}

// WorkflowStatus computes the document's signing status. The roster comes
// from the document's most recent signature request; without one the status
// reflects collected signatures over an empty roster.
func (s *Service) WorkflowStatus(ctx context.Context, documentID string) (*workflow.WorkflowStatus, apperrors.Error) {
	if documentID == "" {
		return nil, ErrInvalidInput.Msg("document ID is required")
	}

	sigs, err := s.collectedSignatures(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if s.requests != nil {
		req, rerr := s.requests.LatestForDocument(ctx, documentID)
		if rerr == nil {
			return workflow.StatusForRequest(req, sigs), nil
		}
		if !errors.Is(rerr, workflow.ErrRequestNotFound) {
			return nil, rerr
		}
	}
	return workflow.Status(documentID, sigs, nil, nil), nil
}

// IssueCertificate builds a display certificate for a stored signature.
func (s *Service) IssueCertificate(ctx context.Context, documentID, signatureID string, info certificate.DocumentInfo) (*certificate.Certificate, apperrors.Error) {
	rec, err := s.sigStore.GetSignature(ctx, documentID, signatureID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrSignatureNotFound
		}
		return nil, ErrSignatureStorage.Err(err)
	}
	if info.DocumentID == "" {
		info.DocumentID = documentID
	}
	return s.issuer.Issue(signatureFromRecord(rec), info)
}

// ListSignatures returns the document's collected signatures.
func (s *Service) ListSignatures(ctx context.Context, documentID string) ([]*sigengine.Signature, apperrors.Error) {
	return s.collectedSignatures(ctx, documentID)
}

func (s *Service) collectedSignatures(ctx context.Context, documentID string) ([]*sigengine.Signature, apperrors.Error) {
	recs, err := s.sigStore.ListSignatures(ctx, documentID)
	if err != nil {
		return nil, ErrSignatureStorage.Err(err)
	}
	sigs := make([]*sigengine.Signature, 0, len(recs))
	for _, rec := range recs {
		sigs = append(sigs, signatureFromRecord(rec))
	}
	return sigs, nil
}

func (s *Service) record(event auditlog.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(event); err != nil {
		log.Error().Err(err).Str("event", event.Event).Msg("unable to write audit event")
	}
}

func recordFromSignature(documentID string, sig *sigengine.Signature) *models.SignatureRecord {
	return &models.SignatureRecord{
		SignatureID:    sig.SignatureID,
		DocumentID:     documentID,
		DocumentHash:   sig.DocumentHash,
		SignerIdentity: sig.SignerInfo.Identity,
		SignerName:     sig.SignerInfo.DisplayName,
		SignerEmail:    sig.SignerInfo.Email,
		SignerRole:     sig.SignerInfo.Role,
		SignedAt:       sig.SignerInfo.Timestamp,
		SourceAddress:  sig.SignerInfo.SourceAddress,
		ClientContext:  sig.SignerInfo.ClientContext,
		KeyID:          sig.KeyID,
		Algorithm:      sig.Algorithm,
		Version:        sig.Version,
		Signature:      sig.Bytes,
		Payload:        sig.Payload,
	}
}

func signatureFromRecord(rec *models.SignatureRecord) *sigengine.Signature {
	return &sigengine.Signature{
		SignatureID:  rec.SignatureID,
		DocumentHash: rec.DocumentHash,
		SignerInfo: sigengine.SignerInfo{
			Identity:      rec.SignerIdentity,
			DisplayName:   rec.SignerName,
			Email:         rec.SignerEmail,
			Role:          rec.SignerRole,
			Timestamp:     rec.SignedAt,
			SourceAddress: rec.SourceAddress,
			ClientContext: rec.ClientContext,
		},
		Algorithm: rec.Algorithm,
		Version:   rec.Version,
		KeyID:     rec.KeyID,
		Bytes:     rec.Signature,
		Payload:   rec.Payload,
	}
}
