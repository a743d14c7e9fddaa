package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anchorgate/internal/collab"
	"anchorgate/internal/did"
	"anchorgate/internal/documents"
	"anchorgate/internal/platform/middleware"
	dErrors "anchorgate/pkg/domain-errors"
	"anchorgate/pkg/platform/httputil"
)

// Anchorer runs the wrapped-document anchoring pipeline.
type Anchorer interface {
	Anchor(ctx context.Context, doc documents.WrappedDocument, session collab.Session) (json.RawMessage, error)
}

// DIDDocuments is the document-controller surface for raw DID document
// get/create proxying.
type DIDDocuments interface {
	CreateDIDDocument(ctx context.Context, companyName, publicKey string, content json.RawMessage, session collab.Session) (json.RawMessage, error)
	GetDIDDocument(ctx context.Context, companyName, fileName string, session collab.Session) (json.RawMessage, error)
}

// ResolverHandler serves the /resolver surface: DID document get/create and
// wrapped-document anchoring.
type ResolverHandler struct {
	anchorer Anchorer
	docs     DIDDocuments
	logger   *slog.Logger
}

func NewResolverHandler(anchorer Anchorer, docs DIDDocuments, logger *slog.Logger) *ResolverHandler {
	return &ResolverHandler{anchorer: anchorer, docs: docs, logger: logger}
}

func (h *ResolverHandler) Register(r chi.Router) {
	r.Get("/resolver/did-document", h.HandleGetDIDDocument)
	r.Post("/resolver/did-document", h.HandleCreateDIDDocument)
	r.Post("/resolver/wrapped-document", h.HandleAnchorWrappedDocument)
}

// HandleGetDIDDocument resolves a DID, passed in the did header, to its
// stored DID document.
func (h *ResolverHandler) HandleGetDIDDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.Header.Get("did")
	if raw == "" {
		httputil.WriteError(w, dErrors.WithDetail(dErrors.CodeMissingParameters, "Missing parameters.", "Not found: did"))
		return
	}
	d, err := did.Parse(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid DID syntax."))
		return
	}

	payload, err := h.docs.GetDIDDocument(ctx, d.CompanyName, d.PublicKeyOrFileName, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "get did document failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, collabError(err))
		return
	}

	httputil.WriteRaw(w, http.StatusOK, payload)
}

type createDIDDocumentRequest struct {
	DID         string          `json:"did"`
	DIDDocument json.RawMessage `json:"didDocument"`
}

// HandleCreateDIDDocument creates a DID document keyed by the DID's company
// name and public key segments.
func (h *ResolverHandler) HandleCreateDIDDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[createDIDDocumentRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.DID == "" || len(req.DIDDocument) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMissingParameters, "Missing parameters."))
		return
	}
	d, err := did.Parse(req.DID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid DID syntax."))
		return
	}

	payload, err := h.docs.CreateDIDDocument(ctx, d.CompanyName, d.PublicKeyOrFileName, req.DIDDocument, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "create did document failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, collabError(err))
		return
	}

	httputil.WriteRaw(w, http.StatusCreated, payload)
}

type anchorRequest struct {
	WrappedDocument *documents.WrappedDocument `json:"wrappedDocument"`
}

// HandleAnchorWrappedDocument runs the anchoring pipeline on the submitted
// wrapped document.
func (h *ResolverHandler) HandleAnchorWrappedDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[anchorRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.WrappedDocument == nil {
		httputil.WriteError(w, dErrors.WithDetail(dErrors.CodeMissingParameters, "Missing parameters.", "Not found: wrappedDocument"))
		return
	}

	stored, err := h.anchorer.Anchor(ctx, *req.WrappedDocument, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "anchoring failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteRaw(w, http.StatusOK, stored)
}

// collabError normalizes a raw collaborator failure from a plain proxy call
// into a domain error the envelope writer understands.
func collabError(err error) error {
	var ce *collab.Error
	if errors.As(err, &ce) {
		return ce.DomainError()
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, "collaborator call failed")
}
