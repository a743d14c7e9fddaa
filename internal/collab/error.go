package collab

import (
	"encoding/json"
	"fmt"

	dErrors "anchorgate/pkg/domain-errors"
)

// Error normalizes the three collaborator failure shapes into one:
//
//  1. an HTTP-level error response carrying a body,
//  2. a 2xx envelope whose payload contains {error_code, error_message},
//  3. no response at all (network error or timeout).
//
// Pipelines treat every Error as "this step failed" and stop advancing;
// only cases 1 and 2 carry a forwardable body.
type Error struct {
	Collaborator string
	Transport    bool // no response at all
	Timeout      bool
	StatusCode   int             // 0 for transport failures
	AppCode      int             // error_code from a 2xx envelope, 0 otherwise
	Body         json.RawMessage // forwardable body, nil for transport failures
	Err          error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("collaborator %s: timeout: %v", e.Collaborator, e.Err)
	case e.Transport:
		return fmt.Sprintf("collaborator %s: transport failure: %v", e.Collaborator, e.Err)
	case e.AppCode != 0:
		return fmt.Sprintf("collaborator %s: application error %d", e.Collaborator, e.AppCode)
	default:
		return fmt.Sprintf("collaborator %s: status %d", e.Collaborator, e.StatusCode)
	}
}

// Unwrap supports error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// ForwardedBody returns the collaborator's response body, when one exists,
// so the gateway can return it to the caller verbatim.
func (e *Error) ForwardedBody() []byte {
	return e.Body
}

// DomainError translates the collaborator failure into a domain error that
// wraps this error, preserving the forwardable body for the HTTP layer.
func (e *Error) DomainError() error {
	code := dErrors.CodeUpstream
	msg := e.Error()
	switch {
	case e.Timeout:
		code = dErrors.CodeTimeout
	case e.StatusCode == 401:
		// An unauthenticated session is propagated, not transformed.
		code = dErrors.CodeUnauthorized
	case e.StatusCode == 409:
		// Uniqueness is enforced by the document controller at persist time.
		code = dErrors.CodeConflict
	}
	return &dErrors.Error{Code: code, Message: msg, Err: e}
}

// appEnvelope is the structural error payload some collaborators return with
// a 2xx status.
type appEnvelope struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
