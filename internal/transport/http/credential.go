package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anchorgate/internal/collab"
	"anchorgate/internal/credential"
	"anchorgate/internal/platform/middleware"
	"anchorgate/pkg/platform/httputil"
)

// CredentialService drives credential issuance and the get/update proxies.
type CredentialService interface {
	Issue(ctx context.Context, req credential.IssueRequest) (json.RawMessage, error)
	Get(ctx context.Context, hash string, session collab.Session) (json.RawMessage, error)
	Update(ctx context.Context, originHash string, content json.RawMessage, session collab.Session) (json.RawMessage, error)
}

// CredentialHandler serves the /credential surface. Every operation requires
// the access_token session cookie.
type CredentialHandler struct {
	service CredentialService
	logger  *slog.Logger
}

func NewCredentialHandler(service CredentialService, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{service: service, logger: logger}
}

func (h *CredentialHandler) Register(r chi.Router) {
	r.Post("/credential", h.HandleIssue)
	r.Get("/credential", h.HandleGet)
	r.Put("/credential", h.HandleUpdate)
}

type issueCredentialRequest struct {
	Credential json.RawMessage `json:"credential"`
	DID        string          `json:"did"`
	Config     json.RawMessage `json:"config"`
}

// HandleIssue runs the issuance pipeline.
func (h *CredentialHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[issueCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}

	stored, err := h.service.Issue(ctx, credential.IssueRequest{
		Credential: req.Credential,
		DID:        req.DID,
		Config:     req.Config,
		Session:    sessionFromRequest(r),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "credential issuance failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteRaw(w, http.StatusOK, stored)
}

// HandleGet retrieves a credential by content hash, passed in the hash header.
func (h *CredentialHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := h.service.Get(ctx, r.Header.Get("hash"), sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "get credential failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteRaw(w, http.StatusOK, payload)
}

type updateCredentialRequest struct {
	OriginCredentialHash string          `json:"originCredentialHash"`
	CredentialContent    json.RawMessage `json:"credentialContent"`
}

// HandleUpdate replaces a stored credential's content.
func (h *CredentialHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[updateCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}

	payload, err := h.service.Update(ctx, req.OriginCredentialHash, req.CredentialContent, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "update credential failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteRaw(w, http.StatusOK, payload)
}
