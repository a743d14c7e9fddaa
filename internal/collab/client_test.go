package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"anchorgate/pkg/platform/circuit"
)

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) newClient(server *httptest.Server, opts ...Option) *Client {
	return NewClient("documents", server.URL, 2*time.Second, opts...)
}

func (s *ClientSuite) TestSuccessPayload() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"stored"}`))
	}))
	defer server.Close()

	payload, err := s.newClient(server).Call(context.Background(), Request{Method: http.MethodGet, Path: "/api/doc"})
	s.Require().NoError(err)
	s.JSONEq(`{"message":"stored"}`, string(payload))
}

func (s *ClientSuite) TestForwardsSessionAndHeaders() {
	var gotCookie, gotCompany, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotCompany = r.Header.Get("companyName")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := s.newClient(server).Call(context.Background(), Request{
		Method:  http.MethodPost,
		Path:    "/api/doc/",
		Headers: map[string]string{"companyName": "Kukulu"},
		Body:    map[string]string{"fileName": "invoice"},
		Session: Session("tok-123"),
	})
	s.Require().NoError(err)
	s.Equal("access_token=tok-123;", gotCookie)
	s.Equal("Kukulu", gotCompany)
	s.Equal("application/json", gotContentType)
}

func (s *ClientSuite) TestHTTPErrorCarriesBody() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code":9,"error_message":"no such company"}`))
	}))
	defer server.Close()

	_, err := s.newClient(server).Call(context.Background(), Request{Method: http.MethodGet, Path: "/x"})

	var ce *Error
	s.Require().True(errors.As(err, &ce))
	s.False(ce.Transport)
	s.Equal(http.StatusBadRequest, ce.StatusCode)
	s.JSONEq(`{"error_code":9,"error_message":"no such company"}`, string(ce.ForwardedBody()))
}

func (s *ClientSuite) TestTwoHundredEnvelopeError() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code":10004,"error_message":"did not found"}`))
	}))
	defer server.Close()

	_, err := s.newClient(server).Call(context.Background(), Request{Method: http.MethodGet, Path: "/x"})

	var ce *Error
	s.Require().True(errors.As(err, &ce))
	s.False(ce.Transport)
	s.Equal(10004, ce.AppCode)
	s.NotEmpty(ce.ForwardedBody())
}

func (s *ClientSuite) TestTransportFailureHasNoBody() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	_, err := s.newClient(server).Call(context.Background(), Request{Method: http.MethodGet, Path: "/x"})

	var ce *Error
	s.Require().True(errors.As(err, &ce))
	s.True(ce.Transport)
	s.Nil(ce.ForwardedBody())
}

func (s *ClientSuite) TestTimeoutIsFlagged() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient("ledger", server.URL, 20*time.Millisecond)
	_, err := client.Call(context.Background(), Request{Method: http.MethodGet, Path: "/x"})

	var ce *Error
	s.Require().True(errors.As(err, &ce))
	s.True(ce.Transport)
	s.True(ce.Timeout)
}

func (s *ClientSuite) TestBreakerFailsFastWhenOpen() {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	server.Close()

	breaker := circuit.New("documents", circuit.WithFailureThreshold(1))
	client := s.newClient(server, WithBreaker(breaker))

	_, err := client.Call(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	s.Require().Error(err)

	_, err = client.Call(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	var ce *Error
	s.Require().True(errors.As(err, &ce))
	s.True(errors.Is(ce, ErrCircuitOpen))
	s.Zero(calls)
}

func TestDomainErrorMapping(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		err := (&Error{Collaborator: "ledger", Transport: true, Timeout: true}).DomainError()
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("unauthorized is propagated", func(t *testing.T) {
		ce := &Error{Collaborator: "auth", StatusCode: 401, Body: []byte(`{"message":"unauthorized"}`)}
		err := ce.DomainError()

		var found *Error
		require.True(t, errors.As(err, &found))
		assert.Equal(t, []byte(`{"message":"unauthorized"}`), found.ForwardedBody())
	})
}

func TestCallJSONDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient("auth", server.URL, time.Second)
	var out map[string]any
	err := client.CallJSON(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, &out)
	assert.Error(t, err)
}

func TestLedgerStoreHashResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "addr1", body["address"])
		assert.Equal(t, "deadbeef", body["hash"])
		w.Write([]byte(`{"result":"true"}`))
	}))
	defer server.Close()

	ledger := NewLedgerClient(NewClient("ledger", server.URL, time.Second))
	result, err := ledger.StoreHash(context.Background(), "addr1", "deadbeef", Session("t"))
	require.NoError(t, err)
	assert.True(t, result.Committed())
}

func TestDocumentsExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Kukulu", r.Header.Get("companyName"))
		assert.Equal(t, "invoice", r.Header.Get("fileName"))
		w.Write([]byte(`{"isExisted":true}`))
	}))
	defer server.Close()

	docs := NewDocumentsClient(NewClient("documents", server.URL, time.Second))
	existed, err := docs.Exists(context.Background(), "Kukulu", "invoice", Session("t"))
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestDIDExists(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		exists    bool
		wantError bool
	}{
		{"stored document", http.StatusOK, `{"controller":["k1"]}`, true, false},
		{"unknown did envelope", http.StatusOK, `{"error_code":404,"error_message":"not found"}`, false, false},
		{"unknown did status", http.StatusNotFound, `{"error_code":404,"error_message":"not found"}`, false, false},
		{"controller failure", http.StatusInternalServerError, `{"error_code":5000,"error_message":"db down"}`, false, true},
		{"bad gateway", http.StatusBadGateway, `upstream unavailable`, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			docs := NewDocumentsClient(NewClient("documents", server.URL, time.Second))
			exists, err := docs.DIDExists(context.Background(), "Kukulu", "senderkey", Session("t"))

			if tc.wantError {
				var ce *Error
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, tc.status, ce.StatusCode)
				assert.Equal(t, []byte(tc.body), ce.ForwardedBody())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exists, exists)
		})
	}
}

func TestAuthVerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "access_token=tok;", r.Header.Get("Cookie"))
		w.Write([]byte(`{"data":{"address":"addr1xyz"}}`))
	}))
	defer server.Close()

	auth := NewAuthClient(NewClient("auth", server.URL, time.Second))
	address, err := auth.VerifyToken(context.Background(), Session("tok"))
	require.NoError(t, err)
	assert.Equal(t, "addr1xyz", address)
}
