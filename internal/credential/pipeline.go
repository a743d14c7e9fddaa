// Package credential drives the issuance pipeline: document retrieval,
// identity resolution, two-stage permission verification, ledger-side
// minting, and persistent storage of the credential.
//
// Like the anchoring pipeline, this is an explicit finite-state machine:
// stages run strictly in order and any failure is terminal for the run.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"anchorgate/internal/collab"
	"anchorgate/internal/did"
	"anchorgate/internal/documents"
	"anchorgate/internal/identity"
	"anchorgate/internal/platform/metrics"
	"anchorgate/internal/platform/tracer"
	"anchorgate/internal/schema"
	dErrors "anchorgate/pkg/domain-errors"
)

// Stage names one step of the issuance state machine.
type Stage string

const (
	StageValidate             Stage = "validate"
	StageFetchDocs            Stage = "fetch_docs"
	StageResolveIdentity      Stage = "resolve_identity"
	StageCheckIssuerMatch     Stage = "check_issuer_match"
	StageCheckControllerMatch Stage = "check_controller_match"
	StageMint                 Stage = "mint"
	StageStore                Stage = "store"
	StageDone                 Stage = "done"
)

// PipelineError is the single terminal failure state. It records which stage
// failed and wraps the domain error describing why.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("issuance failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// DocumentStore is the document-controller dependency of the pipeline.
type DocumentStore interface {
	GetDocuments(ctx context.Context, companyName, fileName string, session collab.Session) (*collab.FetchedDocuments, error)
	StoreCredential(ctx context.Context, hash string, content json.RawMessage, session collab.Session) (json.RawMessage, error)
	GetCredential(ctx context.Context, hash string, session collab.Session) (json.RawMessage, error)
	UpdateCredential(ctx context.Context, hash string, content json.RawMessage, session collab.Session) (json.RawMessage, error)
}

// Minter is the ledger dependency of the pipeline.
type Minter interface {
	MintCredential(ctx context.Context, address string, payload, signature json.RawMessage, session collab.Session) (collab.MintResult, error)
}

// IdentityResolver resolves a session token to the caller's ledger address.
type IdentityResolver interface {
	VerifyToken(ctx context.Context, session collab.Session) (string, error)
}

// Option configures the credential service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// Service runs the issuance pipeline and the credential read/replace proxies.
type Service struct {
	docs    DocumentStore
	ledger  Minter
	auth    IdentityResolver
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// NewService creates the credential service with its collaborator dependencies.
func NewService(docs DocumentStore, ledger Minter, auth IdentityResolver, opts ...Option) *Service {
	s := &Service{
		docs:   docs,
		ledger: ledger,
		auth:   auth,
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueRequest is one issuance run's input. Credential and Config arrive as
// raw JSON so unknown caller fields survive the round trip to storage.
type IssueRequest struct {
	Credential json.RawMessage
	DID        string
	Config     json.RawMessage
	Session    collab.Session
}

// parsedCredential is the subset of credential fields the pipeline reads.
type parsedCredential struct {
	Issuer    string          `json:"issuer"`
	Signature json.RawMessage `json:"signature"`
}

// runState carries the pipeline's data between stages.
type runState struct {
	req  IssueRequest
	cred parsedCredential
	path did.DID

	didDoc    documents.DIDDocument
	address   string
	publicKey string
	mint      collab.MintResult
	stored    json.RawMessage
}

// step pairs a stage name with its transition function.
type step struct {
	stage Stage
	run   func(ctx context.Context, state *runState) error
}

// Issue runs the issuance pipeline and returns the document controller's
// response verbatim on success. Minting strictly precedes storage; a
// credential is never persisted unless the ledger recorded it first.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuancePipeline)

	state := &runState{req: req}
	steps := []step{
		{StageValidate, s.validate},
		{StageFetchDocs, s.fetchDocs},
		{StageResolveIdentity, s.resolveIdentity},
		{StageCheckIssuerMatch, s.checkIssuerMatch},
		{StageCheckControllerMatch, s.checkControllerMatch},
		{StageMint, s.mint},
		{StageStore, s.store},
	}

	for _, st := range steps {
		if err := s.runStage(ctx, st, state); err != nil {
			terminal := &PipelineError{Stage: st.stage, Err: err}
			span.End(terminal)
			s.observe(start, st.stage, "failure")
			s.logFailure(ctx, st.stage, err, state)
			return nil, terminal
		}
	}

	span.SetAttributes(
		tracer.String(tracer.AttrCompanyName, state.path.CompanyName),
		tracer.String(tracer.AttrFileName, state.path.PublicKeyOrFileName),
	)
	span.End(nil)
	s.observe(start, StageDone, "success")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "credential issued",
			"company_name", state.path.CompanyName,
			"file_name", state.path.PublicKeyOrFileName,
		)
	}
	return state.stored, nil
}

func (s *Service) runStage(ctx context.Context, st step, state *runState) error {
	ctx, span := s.tracer.Start(ctx, tracer.SpanStagePrefix+string(st.stage),
		tracer.String(tracer.AttrStage, string(st.stage)),
	)
	err := st.run(ctx, state)
	span.End(err)
	return err
}

// validate rejects the request before any network call is issued: required
// fields, DID syntax, then credential schema.
func (s *Service) validate(_ context.Context, state *runState) error {
	var missing []string
	if len(state.req.Credential) == 0 {
		missing = append(missing, "credential")
	}
	if state.req.DID == "" {
		missing = append(missing, "did")
	}
	if len(state.req.Config) == 0 {
		missing = append(missing, "config")
	}
	if len(missing) > 0 {
		return dErrors.WithDetail(dErrors.CodeMissingParameters, "Missing parameters.",
			"Not found: "+strings.Join(missing, ", "))
	}

	path, err := did.Parse(state.req.DID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "Invalid DID syntax.")
	}
	state.path = path

	if result := schema.Validate(schema.Credential, state.req.Credential); !result.Valid {
		return dErrors.WithDetail(dErrors.CodeInvalidInput, "Invalid credential.", result.Detail)
	}
	if err := json.Unmarshal(state.req.Credential, &state.cred); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "Invalid credential.")
	}
	return nil
}

// fetchDocs retrieves the DID document and wrapped document the credential
// refers to, scoped by the caller's session.
func (s *Service) fetchDocs(ctx context.Context, state *runState) error {
	fetched, err := s.docs.GetDocuments(ctx, state.path.CompanyName, state.path.PublicKeyOrFileName, state.req.Session)
	if err != nil {
		return collabDomainError(err)
	}
	state.didDoc = fetched.DIDDoc
	return nil
}

// resolveIdentity resolves the caller's address from the session. An
// unauthenticated session propagates the upstream unauthorized outcome.
func (s *Service) resolveIdentity(ctx context.Context, state *runState) error {
	address, err := s.auth.VerifyToken(ctx, state.req.Session)
	if err != nil {
		return collabDomainError(err)
	}
	state.address = address
	state.publicKey = identity.PublicKeyFromAddress(address)
	return nil
}

// checkIssuerMatch requires the caller to be the credential's issuer.
func (s *Service) checkIssuerMatch(_ context.Context, state *runState) error {
	if !identity.VerifyIssuerMatch(state.address, state.cred.Issuer) {
		return dErrors.New(dErrors.CodePermissionDenied, "Permission denied.")
	}
	return nil
}

// checkControllerMatch requires the caller's key in the document's
// controller set.
func (s *Service) checkControllerMatch(_ context.Context, state *runState) error {
	if !identity.VerifyController(state.didDoc, state.publicKey) {
		return dErrors.New(dErrors.CodePermissionDenied, "Permission denied.")
	}
	return nil
}

// mint records the credential on the ledger. A non-zero response code is
// terminal and returned to the caller as-is, not rewrapped.
func (s *Service) mint(ctx context.Context, state *runState) error {
	result, err := s.ledger.MintCredential(ctx, state.publicKey, state.req.Credential, state.cred.Signature, state.req.Session)
	if err != nil {
		return collabDomainError(err)
	}
	if !result.Minted() {
		refusal := &collab.Error{Collaborator: "ledger", StatusCode: 200, AppCode: result.Code, Body: result.Raw}
		return refusal.DomainError()
	}
	state.mint = result
	return nil
}

// store persists the credential keyed by its content hash, with the minting
// result folded into the stored content.
func (s *Service) store(ctx context.Context, state *runState) error {
	content, err := mergeMintingConfig(state.req.Credential, state.mint.Data)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not assemble credential content")
	}

	stored, err := s.docs.StoreCredential(ctx, ContentHash(state.req.Credential), content, state.req.Session)
	if err != nil {
		return collabDomainError(err)
	}
	state.stored = stored
	return nil
}

// mergeMintingConfig folds the ledger's minting result into the credential
// content without disturbing caller-supplied fields.
func mergeMintingConfig(credential, mintData json.RawMessage) (json.RawMessage, error) {
	var content map[string]json.RawMessage
	if err := json.Unmarshal(credential, &content); err != nil {
		return nil, err
	}
	if len(mintData) > 0 {
		content["mintingNFTConfig"] = mintData
	}
	return json.Marshal(content)
}

// Get retrieves a stored credential by content hash. It shares the pipeline's
// failure-normalization rule but is a plain proxy, not an orchestration.
func (s *Service) Get(ctx context.Context, hash string, session collab.Session) (json.RawMessage, error) {
	if hash == "" {
		return nil, dErrors.New(dErrors.CodeMissingParameters, "Missing parameters.")
	}
	payload, err := s.docs.GetCredential(ctx, hash, session)
	if err != nil {
		return nil, collabDomainError(err)
	}
	return payload, nil
}

// Update replaces a stored credential's content, keyed by the original
// content hash.
func (s *Service) Update(ctx context.Context, originHash string, content json.RawMessage, session collab.Session) (json.RawMessage, error) {
	if originHash == "" || len(content) == 0 {
		return nil, dErrors.New(dErrors.CodeMissingParameters, "Missing parameters.")
	}
	payload, err := s.docs.UpdateCredential(ctx, originHash, content, session)
	if err != nil {
		return nil, collabDomainError(err)
	}
	return payload, nil
}

func (s *Service) observe(start time.Time, stage Stage, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IssuanceRuns.WithLabelValues(string(stage), outcome).Inc()
	s.metrics.PipelineLatency.WithLabelValues("issuance").Observe(time.Since(start).Seconds())
}

func (s *Service) logFailure(ctx context.Context, stage Stage, err error, state *runState) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, "issuance pipeline terminated",
		"stage", string(stage),
		"error", err,
		"company_name", state.path.CompanyName,
	)
}

// collabDomainError converts a collaborator failure into a domain error,
// preserving any forwardable body.
func collabDomainError(err error) error {
	var ce *collab.Error
	if errors.As(err, &ce) {
		return ce.DomainError()
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, "collaborator call failed")
}
