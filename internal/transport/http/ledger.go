package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"anchorgate/internal/collab"
	"anchorgate/internal/platform/middleware"
	dErrors "anchorgate/pkg/domain-errors"
	"anchorgate/pkg/platform/httputil"
)

// LedgerProxy is the ledger-service surface forwarded without orchestration.
type LedgerProxy interface {
	GetNFTs(ctx context.Context, policyID string, session collab.Session) (json.RawMessage, error)
	VerifyHash(ctx context.Context, policyID, hashOfDocument string, session collab.Session) (json.RawMessage, error)
	VerifySignature(ctx context.Context, address, payload, signature string, session collab.Session) (json.RawMessage, error)
}

// LedgerHandler serves the /ledger surface: plain forwarding proxies that
// share the collaborator failure normalization with the pipelines.
type LedgerHandler struct {
	ledger LedgerProxy
	logger *slog.Logger
}

func NewLedgerHandler(ledger LedgerProxy, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

func (h *LedgerHandler) Register(r chi.Router) {
	r.Get("/ledger/nfts", h.HandleGetNFTs)
	r.Get("/ledger/verify-hash", h.HandleVerifyHash)
	r.Post("/ledger/verify-signature", h.HandleVerifySignature)
}

// HandleGetNFTs lists the assets minted under a policy, passed in the
// policyid header.
func (h *LedgerHandler) HandleGetNFTs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID := r.Header.Get("policyid")
	if policyID == "" {
		httputil.WriteError(w, dErrors.WithDetail(dErrors.CodeMissingParameters, "Missing parameters.", "Not found: policyid"))
		return
	}

	payload, err := h.ledger.GetNFTs(ctx, policyID, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "get nfts failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, collabError(err))
		return
	}

	httputil.WriteRaw(w, http.StatusOK, payload)
}

// HandleVerifyHash checks a document hash against a policy, both passed as
// headers.
func (h *LedgerHandler) HandleVerifyHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID := r.Header.Get("policyid")
	hashOfDocument := r.Header.Get("hashofdocument")
	if policyID == "" || hashOfDocument == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMissingParameters, "Missing parameters."))
		return
	}

	payload, err := h.ledger.VerifyHash(ctx, policyID, hashOfDocument, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "verify hash failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, collabError(err))
		return
	}

	httputil.WriteRaw(w, http.StatusOK, payload)
}

type verifySignatureRequest struct {
	Address   string `json:"address"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Validate checks the required fields before the request reaches the ledger.
func (r *verifySignatureRequest) Validate() error {
	var missing []string
	if r.Address == "" {
		missing = append(missing, "address")
	}
	if r.Payload == "" {
		missing = append(missing, "payload")
	}
	if r.Signature == "" {
		missing = append(missing, "signature")
	}
	if len(missing) > 0 {
		return dErrors.WithDetail(dErrors.CodeMissingParameters, "Missing parameters.",
			"Not found: "+strings.Join(missing, ", "))
	}
	return nil
}

// HandleVerifySignature checks a signature over a payload for an address.
func (h *LedgerHandler) HandleVerifySignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndValidate[verifySignatureRequest](w, r, h.logger)
	if !ok {
		return
	}

	payload, err := h.ledger.VerifySignature(ctx, req.Address, req.Payload, req.Signature, sessionFromRequest(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "verify signature failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, collabError(err))
		return
	}

	httputil.WriteRaw(w, http.StatusOK, payload)
}
