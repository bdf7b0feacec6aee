package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkform/inkform/internal/common/httpx"
	"github.com/inkform/inkform/internal/signsrv/sigengine"
	"github.com/inkform/inkform/pkg/api"
)

// signDocument signs the posted content on behalf of the authenticated
// caller. The signer identity comes from the gateway header, never the
// request body.
func (s *SignServer) signDocument(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	documentID := chi.URLParam(r, "documentID")
	identity, err := identityFromRequest(r)
	if err != nil {
		return nil, err
	}

	req := &api.SignDocumentRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	sig, serr := s.docs.Sign(ctx, documentID, req.Content, sigengine.SignerInfo{
		Identity:      identity,
		DisplayName:   req.SignerInfo.DisplayName,
		Email:         req.SignerInfo.Email,
		Role:          req.SignerInfo.Role,
		SourceAddress: r.RemoteAddr,
		ClientContext: req.SignerInfo.ClientContext,
	})
	if serr != nil {
		return nil, serr
	}

	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/documents/" + documentID + "/signatures",
		Response:   signatureRsp(documentID, sig),
	}, nil
}

// verifyDocument verifies posted content against one stored signature or
// all of them.
func (s *SignServer) verifyDocument(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	documentID := chi.URLParam(r, "documentID")

	req := &api.VerifyDocumentRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}

	batch, err := s.docs.Verify(ctx, documentID, req.Content, req.SignatureID)
	if err != nil {
		return nil, err
	}

	rsp := &api.VerifyDocumentResponse{
		DocumentID: documentID,
		AllValid:   batch.AllValid,
		ValidCount: batch.ValidCount,
		Total:      batch.Total,
		Results:    make([]api.VerifyResultResponse, 0, len(batch.Results)),
	}
	for _, result := range batch.Results {
		out := api.VerifyResultResponse{
			SignatureID: result.SignatureID,
			Valid:       result.Valid,
			Reason:      result.Reason,
		}
		if result.SignerInfo != nil {
			out.Signer = result.SignerInfo.Identity
		}
		rsp.Results = append(rsp.Results, out)
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// getWorkflowStatus reports the document's derived signing status.
func (s *SignServer) getWorkflowStatus(r *http.Request) (*httpx.Response, error) {
	documentID := chi.URLParam(r, "documentID")

	st, err := s.docs.WorkflowStatus(r.Context(), documentID)
	if err != nil {
		return nil, err
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.WorkflowStatusResponse{
			DocumentID:           st.DocumentID,
			Status:               st.Status,
			AllRequiredSigned:    st.AllRequiredSigned,
			CompletionPercentage: st.CompletionPercentage,
			RequiredSigners:      st.RequiredSigners,
			OptionalSigners:      st.OptionalSigners,
			SignedIdentities:     st.SignedIdentities,
			PendingSigners:       st.PendingSigners,
			SignatureCount:       st.SignatureCount,
			LastSignedAt:         st.LastSignedAt,
		},
	}, nil
}

func signatureRsp(documentID string, sig *sigengine.Signature) *api.SignatureResponse {
	return &api.SignatureResponse{
		SignatureID:  sig.SignatureID,
		DocumentID:   documentID,
		DocumentHash: sig.DocumentHash,
		Signer:       sig.SignerInfo.Identity,
		SignedAt:     sig.SignerInfo.Timestamp,
		KeyID:        sig.KeyID,
		Algorithm:    sig.Algorithm,
		Version:      sig.Version,
		Signature:    sig.Bytes,
	}
}
