package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "anchorgate/pkg/domain-errors"
)

func TestWriteErrorEnvelope(t *testing.T) {
	cases := []struct {
		name       string
		code       dErrors.Code
		wantStatus int
		wantCode   int
	}{
		{"missing parameters", dErrors.CodeMissingParameters, http.StatusBadRequest, 4001},
		{"invalid input", dErrors.CodeInvalidInput, http.StatusBadRequest, 4002},
		{"permission denied", dErrors.CodePermissionDenied, http.StatusForbidden, 4003},
		{"user not exist", dErrors.CodeUserNotExist, http.StatusNotFound, 4004},
		{"conflict", dErrors.CodeConflict, http.StatusConflict, 4005},
		{"upstream", dErrors.CodeUpstream, http.StatusBadGateway, 5020},
		{"timeout", dErrors.CodeTimeout, http.StatusGatewayTimeout, 5040},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, dErrors.New(tc.code, "boom"))

			assert.Equal(t, tc.wantStatus, rec.Code)

			var envelope ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tc.wantCode, envelope.ErrorCode)
			assert.Equal(t, "boom", envelope.ErrorMessage)
		})
	}
}

type bodiedError struct {
	domain *dErrors.Error
	body   []byte
}

func (e *bodiedError) Error() string         { return e.domain.Error() }
func (e *bodiedError) Unwrap() error         { return e.domain }
func (e *bodiedError) ForwardedBody() []byte { return e.body }

func TestWriteErrorForwardsUpstreamBody(t *testing.T) {
	err := &bodiedError{
		domain: &dErrors.Error{Code: dErrors.CodeUpstream, Message: "ledger failed"},
		body:   []byte(`{"error_code":7,"error_message":"cannot store hash"}`),
	}

	rec := httptest.NewRecorder()
	WriteError(rec, err)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error_code":7,"error_message":"cannot store hash"}`, rec.Body.String())
}

func TestWriteErrorNonDomain(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeRequest struct {
	DID string `json:"did"`
}

func (r *fakeRequest) Validate() error {
	if r.DID == "" {
		return dErrors.New(dErrors.CodeMissingParameters, "did is required")
	}
	return nil
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"did":"did:x:y:z"}`))
		rec := httptest.NewRecorder()

		decoded, ok := DecodeAndValidate[fakeRequest](rec, req, nil)
		require.True(t, ok)
		assert.Equal(t, "did:x:y:z", decoded.DID)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndValidate[fakeRequest](rec, req, nil)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndValidate[fakeRequest](rec, req, nil)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var envelope ErrorEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, 4001, envelope.ErrorCode)
	})
}
