package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/apperrors"
	"github.com/inkform/inkform/internal/common/uuid"
	"github.com/inkform/inkform/internal/signsrv/auditlog"
	"github.com/inkform/inkform/internal/signsrv/db"
	"github.com/inkform/inkform/internal/signsrv/db/dberror"
	"github.com/inkform/inkform/internal/signsrv/db/models"
)

// DefaultMaxExpirationHours caps request lifetimes at one week.
const DefaultMaxExpirationHours = 168

// RequestService issues and validates time-bound signature requests. Tokens
// are keyed hashes over the request payload and a server-held secret, so a
// stored request is sufficient to recompute and check any presented token.
type RequestService struct {
	store    db.RequestStore
	secret   string
	maxHours int
	audit    *auditlog.Writer
	now      func() time.Time
}

// NewRequestService creates a RequestService. maxExpirationHours bounds the
// lifetime of any request; zero or negative selects the default of 168.
func NewRequestService(store db.RequestStore, tokenSecret string, maxExpirationHours int) *RequestService {
	if maxExpirationHours <= 0 {
		maxExpirationHours = DefaultMaxExpirationHours
	}
	return &RequestService{
		store:    store,
		secret:   tokenSecret,
		maxHours: maxExpirationHours,
		now:      time.Now,
	}
}

// SetAuditLog attaches an audit writer. Request issuance and cancellation
// are recorded there; a nil writer disables audit logging.
func (s *RequestService) SetAuditLog(audit *auditlog.Writer) {
	s.audit = audit
}

func (s *RequestService) record(event auditlog.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(event); err != nil {
		log.Error().Err(err).Str("event", event.Event).Msg("unable to write audit event")
	}
}

// CreateRequest creates a PENDING signature request for a document.
// expirationHours is clamped to the service maximum.
func (s *RequestService) CreateRequest(ctx context.Context, documentID string, requiredSigners, optionalSigners []string, requestingIdentity string, expirationHours int) (*models.SignatureRequest, apperrors.Error) {
	if documentID == "" {
		return nil, ErrRequestInvalid.Msg("document ID is required")
	}
	if requestingIdentity == "" {
		return nil, ErrRequestInvalid.Msg("requesting identity is required")
	}
	if len(requiredSigners) == 0 && len(optionalSigners) == 0 {
		return nil, ErrRequestInvalid.Msg("at least one signer is required")
	}
	if expirationHours <= 0 {
		return nil, ErrRequestInvalid.Msg("expiration hours must be positive")
	}
	if expirationHours > s.maxHours {
		expirationHours = s.maxHours
	}

	requestID, err := uuid.NewRandom()
	if err != nil {
		return nil, ErrWorkflow.Msg("unable to allocate request ID").Err(err)
	}

	// timestamps are truncated to microseconds so token recomputation is
	// stable across a timestamptz roundtrip
	now := s.now().UTC().Truncate(time.Microsecond)
	req := &models.SignatureRequest{
		RequestID:          requestID,
		DocumentID:         documentID,
		RequiredSigners:    normalizeSigners(requiredSigners),
		OptionalSigners:    normalizeSigners(optionalSigners),
		RequestingIdentity: requestingIdentity,
		Status:             models.RequestStatusPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(time.Duration(expirationHours) * time.Hour),
	}

	token, derr := deriveToken(req, s.secret)
	if derr != nil {
		return nil, derr
	}
	req.Token = token

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, ErrRequestStorage.Err(err)
	}

	log.Ctx(ctx).Info().
		Str("document_id", documentID).
		Str("request_id", requestID.String()).
		Int("required_signers", len(req.RequiredSigners)).
		Int("expiration_hours", expirationHours).
		Msg("created signature request")
	s.record(auditlog.Event{
		Event:          auditlog.EventRequestCreated,
		DocumentID:     documentID,
		RequestID:      requestID.String(),
		SignerIdentity: requestingIdentity,
	})

	return req, nil
}

// ValidateToken validates a presented token against the stored request for a
// document. Validation recomputes the token from the stored request and
// compares, then checks expiry. A PENDING request found past its expiry is
// lazily transitioned to EXPIRED.
func (s *RequestService) ValidateToken(ctx context.Context, token, documentID string) (*models.SignatureRequest, apperrors.Error) {
	if !validTokenFormat(token) {
		return nil, ErrRequestInvalid.Msg("malformed token")
	}

	req, err := s.store.GetRequestByToken(ctx, token)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrRequestInvalid.Msg("unknown token")
		}
		return nil, ErrRequestStorage.Err(err)
	}
	if req.DocumentID != documentID {
		return nil, ErrRequestInvalid.Msg("token does not match document")
	}

	expected, derr := deriveToken(req, s.secret)
	if derr != nil {
		return nil, derr
	}
	if expected != token {
		return nil, ErrRequestInvalid.Msg("token mismatch")
	}

	if req.IsExpired(s.now().UTC()) {
		if req.Status == models.RequestStatusPending {
			if uerr := s.store.UpdateRequestStatus(ctx, req.RequestID, models.RequestStatusExpired); uerr != nil {
				log.Ctx(ctx).Error().Err(uerr).Str("request_id", req.RequestID.String()).Msg("unable to expire request")
			}
			req.Status = models.RequestStatusExpired
		}
		return nil, ErrRequestExpired
	}
	if req.Status != models.RequestStatusPending {
		return nil, ErrRequestClosed.Msg("request is " + string(req.Status))
	}

	return req, nil
}

// Cancel transitions a PENDING request to CANCELLED. Only the requesting
// identity may cancel.
func (s *RequestService) Cancel(ctx context.Context, requestID uuid.UUID, identity string) apperrors.Error {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrRequestNotFound
		}
		return ErrRequestStorage.Err(err)
	}
	if req.RequestingIdentity != identity {
		return ErrNotRequester
	}
	if req.Status != models.RequestStatusPending {
		return ErrRequestClosed.Msg("request is " + string(req.Status))
	}
	if err := s.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusCancelled); err != nil {
		return ErrRequestStorage.Err(err)
	}
	log.Ctx(ctx).Info().Str("request_id", requestID.String()).Msg("cancelled signature request")
	s.record(auditlog.Event{
		Event:      auditlog.EventRequestClosed,
		DocumentID: req.DocumentID,
		RequestID:  requestID.String(),
		Outcome:    string(models.RequestStatusCancelled),
	})
	return nil
}

// MarkCompleted transitions a PENDING request to COMPLETED. Called once the
// workflow reports all required signers have signed.
func (s *RequestService) MarkCompleted(ctx context.Context, requestID uuid.UUID) apperrors.Error {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrRequestNotFound
		}
		return ErrRequestStorage.Err(err)
	}
	if req.Status != models.RequestStatusPending {
		return ErrRequestClosed.Msg("request is " + string(req.Status))
	}
	if err := s.store.UpdateRequestStatus(ctx, requestID, models.RequestStatusCompleted); err != nil {
		return ErrRequestStorage.Err(err)
	}
	return nil
}

// LatestForDocument returns the most recent request for a document.
func (s *RequestService) LatestForDocument(ctx context.Context, documentID string) (*models.SignatureRequest, apperrors.Error) {
	req, err := s.store.LatestRequestForDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, ErrRequestStorage.Err(err)
	}
	return req, nil
}

// SweepExpired scans PENDING requests and marks those past expiry EXPIRED.
// Expiry is otherwise detected lazily at validation; this supports a
// scheduled cleanup pass. Returns the number of requests transitioned.
func (s *RequestService) SweepExpired(ctx context.Context) (int, apperrors.Error) {
	pending, err := s.store.ListRequestsByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		return 0, ErrRequestStorage.Err(err)
	}
	now := s.now().UTC()
	swept := 0
	for _, req := range pending {
		if !req.IsExpired(now) {
			continue
		}
		if err := s.store.UpdateRequestStatus(ctx, req.RequestID, models.RequestStatusExpired); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("request_id", req.RequestID.String()).Msg("unable to expire request")
			continue
		}
		swept++
	}
	if swept > 0 {
		log.Ctx(ctx).Info().Int("swept", swept).Msg("expired stale signature requests")
	}
	return swept, nil
}

func normalizeSigners(signers []string) []string {
	out := make([]string, 0, len(signers))
	seen := make(map[string]bool)
	for _, s := range signers {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
