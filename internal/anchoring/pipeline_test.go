package anchoring

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"anchorgate/internal/collab"
	"anchorgate/internal/documents"
	dErrors "anchorgate/pkg/domain-errors"
)

// stubDocs is a test double for DocumentStore recording call counts and order.
type stubDocs struct {
	existsFn func(companyName, fileName string) (bool, error)
	storeFn  func(companyName, fileName string, doc documents.WrappedDocument) (json.RawMessage, error)

	existsCalls atomic.Int32
	storeCalls  atomic.Int32

	mu    sync.Mutex
	order *[]string
}

func (s *stubDocs) record(name string) {
	if s.order == nil {
		return
	}
	s.mu.Lock()
	*s.order = append(*s.order, name)
	s.mu.Unlock()
}

func (s *stubDocs) Exists(_ context.Context, companyName, fileName string, _ collab.Session) (bool, error) {
	s.existsCalls.Add(1)
	s.record("exists")
	if s.existsFn != nil {
		return s.existsFn(companyName, fileName)
	}
	return false, nil
}

func (s *stubDocs) StoreDocument(_ context.Context, companyName, fileName string, doc documents.WrappedDocument, _ collab.Session) (json.RawMessage, error) {
	s.storeCalls.Add(1)
	s.record("store")
	if s.storeFn != nil {
		return s.storeFn(companyName, fileName, doc)
	}
	return json.RawMessage(`{"message":"stored"}`), nil
}

// stubLedger is a test double for HashCommitter.
type stubLedger struct {
	storeHashFn func(address, hash string) (collab.StoreHashResult, error)

	storeHashCalls atomic.Int32

	mu    sync.Mutex
	order *[]string
}

func (s *stubLedger) StoreHash(_ context.Context, address, hash string, _ collab.Session) (collab.StoreHashResult, error) {
	s.storeHashCalls.Add(1)
	if s.order != nil {
		s.mu.Lock()
		*s.order = append(*s.order, "storeHash")
		s.mu.Unlock()
	}
	if s.storeHashFn != nil {
		return s.storeHashFn(address, hash)
	}
	return collab.StoreHashResult{Result: "true"}, nil
}

type PipelineSuite struct {
	suite.Suite

	docs   *stubDocs
	ledger *stubLedger
	svc    *Service
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.docs = &stubDocs{}
	s.ledger = &stubLedger{}
	s.svc = NewService(s.docs, s.ledger)
}

func (s *PipelineSuite) wrappedDoc(didStr string) documents.WrappedDocument {
	return documents.WrappedDocument{
		Data: documents.WrappedData{
			DDIDDocument: didStr,
			Issuers:      []documents.Issuer{{Address: "addr1issuer"}},
		},
		Signature: documents.DocSignature{TargetHash: "deadbeef"},
	}
}

func (s *PipelineSuite) anchor(doc documents.WrappedDocument) (json.RawMessage, error) {
	return s.svc.Anchor(context.Background(), doc, collab.Session("tok"))
}

func (s *PipelineSuite) assertTerminal(err error, stage Stage, code dErrors.Code) {
	var pe *PipelineError
	s.Require().True(errors.As(err, &pe), "expected a pipeline error, got %v", err)
	s.Equal(stage, pe.Stage)
	s.True(dErrors.HasCode(err, code), "expected code %s, got %v", code, err)
}

func (s *PipelineSuite) TestFourSegmentDIDRejectedWithoutCollaboratorCalls() {
	_, err := s.anchor(s.wrappedDoc("did:tradedoc:Kukulu:invoice"))

	s.assertTerminal(err, StageValidate, dErrors.CodeInvalidInput)
	s.Zero(s.docs.existsCalls.Load())
	s.Zero(s.ledger.storeHashCalls.Load())
	s.Zero(s.docs.storeCalls.Load())
}

func (s *PipelineSuite) TestMissingFieldsRejectedLocally() {
	cases := []struct {
		name string
		doc  documents.WrappedDocument
	}{
		{"no embedded DID", documents.WrappedDocument{
			Data:      documents.WrappedData{Issuers: []documents.Issuer{{Address: "a"}}},
			Signature: documents.DocSignature{TargetHash: "h"},
		}},
		{"no target hash", documents.WrappedDocument{
			Data: documents.WrappedData{DDIDDocument: "did:m:a:b:Kukulu:f", Issuers: []documents.Issuer{{Address: "a"}}},
		}},
		{"no issuer address", documents.WrappedDocument{
			Data:      documents.WrappedData{DDIDDocument: "did:m:a:b:Kukulu:f"},
			Signature: documents.DocSignature{TargetHash: "h"},
		}},
	}

	for _, tc := range cases {
		s.T().Run(tc.name, func(t *testing.T) {
			_, err := s.anchor(tc.doc)
			var pe *PipelineError
			if !errors.As(err, &pe) || pe.Stage != StageValidate {
				t.Fatalf("expected validate-stage failure, got %v", err)
			}
			if !dErrors.HasCode(err, dErrors.CodeMissingParameters) {
				t.Fatalf("expected missing_parameters, got %v", err)
			}
		})
	}
	s.Zero(s.docs.existsCalls.Load())
	s.Zero(s.ledger.storeHashCalls.Load())
}

func (s *PipelineSuite) TestExistingNameIsConflictAndLedgerNeverCalled() {
	s.docs.existsFn = func(_, _ string) (bool, error) { return true, nil }

	_, err := s.anchor(s.wrappedDoc("did:tradedoc:a:b:Kukulu:invoice"))

	s.assertTerminal(err, StageCheckExistence, dErrors.CodeConflict)
	s.EqualError(errors.Unwrap(err), "File name existed")
	s.Zero(s.ledger.storeHashCalls.Load())
	s.Zero(s.docs.storeCalls.Load())
}

func (s *PipelineSuite) TestLedgerRefusalStopsBeforePersist() {
	s.ledger.storeHashFn = func(_, _ string) (collab.StoreHashResult, error) {
		return collab.StoreHashResult{Result: "false"}, nil
	}

	_, err := s.anchor(s.wrappedDoc("did:tradedoc:a:b:Kukulu:invoice"))

	s.assertTerminal(err, StageCommitHash, dErrors.CodeUpstream)
	s.Contains(err.Error(), "false. Cannot store hash")
	s.Zero(s.docs.storeCalls.Load())
}

func (s *PipelineSuite) TestTransportFailureIsTerminal() {
	s.ledger.storeHashFn = func(_, _ string) (collab.StoreHashResult, error) {
		return collab.StoreHashResult{}, &collab.Error{Collaborator: "ledger", Transport: true, Timeout: true}
	}

	_, err := s.anchor(s.wrappedDoc("did:tradedoc:a:b:Kukulu:invoice"))

	s.assertTerminal(err, StageCommitHash, dErrors.CodeTimeout)
	s.Zero(s.docs.storeCalls.Load())
}

func (s *PipelineSuite) TestSuccessReturnsStoredRepresentation() {
	var gotCompany, gotFile, gotAddress, gotHash string
	s.docs.storeFn = func(companyName, fileName string, _ documents.WrappedDocument) (json.RawMessage, error) {
		gotCompany, gotFile = companyName, fileName
		return json.RawMessage(`{"message":"Stored data"}`), nil
	}
	s.ledger.storeHashFn = func(address, hash string) (collab.StoreHashResult, error) {
		gotAddress, gotHash = address, hash
		return collab.StoreHashResult{Result: "true"}, nil
	}

	stored, err := s.anchor(s.wrappedDoc("did:tradedoc:a:b:Kukulu:invoice-42"))

	s.Require().NoError(err)
	s.JSONEq(`{"message":"Stored data"}`, string(stored))
	s.Equal("Kukulu", gotCompany)
	s.Equal("invoice-42", gotFile)
	s.Equal("addr1issuer", gotAddress)
	s.Equal("deadbeef", gotHash)
}

func (s *PipelineSuite) TestLedgerCommitObservedStrictlyBeforePersist() {
	var order []string
	s.docs.order = &order
	s.ledger.order = &order

	_, err := s.anchor(s.wrappedDoc("did:tradedoc:a:b:Kukulu:invoice"))

	s.Require().NoError(err)
	s.Equal([]string{"exists", "storeHash", "store"}, order)
}

func (s *PipelineSuite) TestPersistConflictSurfacesAsConflict() {
	s.docs.storeFn = func(_, _ string, _ documents.WrappedDocument) (json.RawMessage, error) {
		return nil, &collab.Error{Collaborator: "documents", StatusCode: 409, Body: []byte(`{"error_code":4005,"error_message":"duplicate"}`)}
	}

	_, err := s.anchor(s.wrappedDoc("did:tradedoc:a:b:Kukulu:invoice"))

	s.assertTerminal(err, StagePersistDocument, dErrors.CodeConflict)
}
