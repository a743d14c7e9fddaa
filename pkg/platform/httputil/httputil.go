package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "anchorgate/pkg/domain-errors"
)

// ErrorEnvelope is the JSON error body returned on every failed request.
type ErrorEnvelope struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Detail       string `json:"detail,omitempty"`
}

// BodyCarrier is implemented by errors that carry a forwardable upstream
// response body. When present, the body is returned to the caller verbatim
// instead of the generic envelope.
type BodyCarrier interface {
	ForwardedBody() []byte
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so encoding
	// errors are ignored.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteRaw writes a pre-serialized JSON body, typically a collaborator
// response forwarded verbatim.
func WriteRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError centralizes domain error translation to HTTP responses.
// Upstream failures that carried a response body are forwarded verbatim;
// everything else gets the structured envelope.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorEnvelope{
			ErrorCode:    DomainCodeToErrorCode(dErrors.CodeInternal),
			ErrorMessage: "internal error",
		})
		return
	}

	status := DomainCodeToHTTPStatus(domainErr.Code)

	var carrier BodyCarrier
	if errors.As(err, &carrier) {
		if body := carrier.ForwardedBody(); len(body) > 0 {
			WriteRaw(w, status, body)
			return
		}
	}

	WriteJSON(w, status, ErrorEnvelope{
		ErrorCode:    DomainCodeToErrorCode(domainErr.Code),
		ErrorMessage: domainErr.Error(),
		Detail:       domainErr.Detail,
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
// One consistent mapping for every surface; domain failures are never hidden
// behind a 200.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeMissingParameters, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodePermissionDenied:
		return http.StatusForbidden
	case dErrors.CodeUserNotExist, dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUpstream:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToErrorCode translates domain error codes to the numeric
// error_code field of the response envelope.
func DomainCodeToErrorCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeMissingParameters:
		return 4001
	case dErrors.CodeInvalidInput:
		return 4002
	case dErrors.CodePermissionDenied:
		return 4003
	case dErrors.CodeUserNotExist:
		return 4004
	case dErrors.CodeConflict:
		return 4005
	case dErrors.CodeUnauthorized:
		return 4010
	case dErrors.CodeNotFound:
		return 4040
	case dErrors.CodeUpstream:
		return 5020
	case dErrors.CodeTimeout:
		return 5040
	default:
		return 5000
	}
}
