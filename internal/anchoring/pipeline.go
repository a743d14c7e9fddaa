// Package anchoring drives the wrapped-document pipeline: existence check,
// hash commitment on the ledger, then persistent storage of the document.
//
// The pipeline is an explicit finite-state machine. Stages run strictly in
// order; a stage only runs if the previous one succeeded, and any failure is
// terminal for the run. Nothing is retried here: the hash commit and the
// document store have external side effects and are not safely idempotent.
package anchoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"anchorgate/internal/collab"
	"anchorgate/internal/did"
	"anchorgate/internal/documents"
	"anchorgate/internal/platform/metrics"
	"anchorgate/internal/platform/tracer"
	dErrors "anchorgate/pkg/domain-errors"
)

// Stage names one step of the anchoring state machine.
type Stage string

const (
	StageValidate        Stage = "validate"
	StageCheckExistence  Stage = "check_existence"
	StageCommitHash      Stage = "commit_hash"
	StagePersistDocument Stage = "persist_document"
	StageDone            Stage = "done"
)

// PipelineError is the single terminal failure state. It records which stage
// failed and wraps the domain error describing why.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("anchoring failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// DocumentStore is the document-controller dependency of the pipeline.
type DocumentStore interface {
	Exists(ctx context.Context, companyName, fileName string, session collab.Session) (bool, error)
	StoreDocument(ctx context.Context, companyName, fileName string, doc documents.WrappedDocument, session collab.Session) (json.RawMessage, error)
}

// HashCommitter is the ledger dependency of the pipeline.
type HashCommitter interface {
	StoreHash(ctx context.Context, address, hash string, session collab.Session) (collab.StoreHashResult, error)
}

// Option configures the anchoring service.
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

// Service runs the anchoring pipeline.
type Service struct {
	docs    DocumentStore
	ledger  HashCommitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// NewService creates the anchoring service with its collaborator dependencies.
func NewService(docs DocumentStore, ledger HashCommitter, opts ...Option) *Service {
	s := &Service{
		docs:   docs,
		ledger: ledger,
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runState carries the pipeline's data between stages.
type runState struct {
	doc     documents.WrappedDocument
	session collab.Session

	path   did.DocumentPath
	stored json.RawMessage
}

// step pairs a stage name with its transition function.
type step struct {
	stage Stage
	run   func(ctx context.Context, state *runState) error
}

// Anchor runs the wrapped-document pipeline and returns the document
// controller's stored representation on success.
//
// The existence check and the persist are not atomic as a pair; two
// concurrent anchors for the same name can both pass the check. The document
// controller must enforce uniqueness at persist time, which surfaces here as
// a conflict.
func (s *Service) Anchor(ctx context.Context, doc documents.WrappedDocument, session collab.Session) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanAnchorPipeline)

	state := &runState{doc: doc, session: session}
	steps := []step{
		{StageValidate, s.validate},
		{StageCheckExistence, s.checkExistence},
		{StageCommitHash, s.commitHash},
		{StagePersistDocument, s.persistDocument},
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
		tracer.String(tracer.AttrFileName, state.path.FileName),
	)
	span.End(nil)
	s.observe(start, StageDone, "success")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "wrapped document anchored",
			"company_name", state.path.CompanyName,
			"file_name", state.path.FileName,
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

// validate rejects the request before any network call is issued.
func (s *Service) validate(_ context.Context, state *runState) error {
	if state.doc.Data.DDIDDocument == "" {
		return dErrors.New(dErrors.CodeMissingParameters, "Missing parameters.")
	}
	if state.doc.Signature.TargetHash == "" {
		return dErrors.New(dErrors.CodeMissingParameters, "Missing parameters.")
	}
	if state.doc.Address() == "" {
		return dErrors.New(dErrors.CodeMissingParameters, "Missing parameters.")
	}

	path, err := did.ParseFullPath(state.doc.Data.DDIDDocument)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "Invalid DID syntax.")
	}
	state.path = path
	return nil
}

// checkExistence rejects anchoring under an already-used name. An existing
// document is a conflict, not a transient error.
func (s *Service) checkExistence(ctx context.Context, state *runState) error {
	existed, err := s.docs.Exists(ctx, state.path.CompanyName, state.path.FileName, state.session)
	if err != nil {
		return collabDomainError(err)
	}
	if existed {
		return dErrors.New(dErrors.CodeConflict, "File name existed")
	}
	return nil
}

// commitHash stores the document hash on the ledger. The commit is external
// and cannot be rolled back by this pipeline; a later stage failure leaves
// the hash committed (surfaced to the caller, reconciled manually).
func (s *Service) commitHash(ctx context.Context, state *runState) error {
	result, err := s.ledger.StoreHash(ctx, state.doc.Address(), state.doc.Signature.TargetHash, state.session)
	if err != nil {
		return collabDomainError(err)
	}
	if !result.Committed() {
		return dErrors.New(dErrors.CodeUpstream, fmt.Sprintf("%s. Cannot store hash", result.Result))
	}
	return nil
}

// persistDocument stores the wrapped document after its hash is committed.
func (s *Service) persistDocument(ctx context.Context, state *runState) error {
	stored, err := s.docs.StoreDocument(ctx, state.path.CompanyName, state.path.FileName, state.doc, state.session)
	if err != nil {
		return collabDomainError(err)
	}
	state.stored = stored
	return nil
}

func (s *Service) observe(start time.Time, stage Stage, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnchorRuns.WithLabelValues(string(stage), outcome).Inc()
	s.metrics.PipelineLatency.WithLabelValues("anchoring").Observe(time.Since(start).Seconds())
}

func (s *Service) logFailure(ctx context.Context, stage Stage, err error, state *runState) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, "anchoring pipeline terminated",
		"stage", string(stage),
		"error", err,
		"company_name", state.path.CompanyName,
		"file_name", state.path.FileName,
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
