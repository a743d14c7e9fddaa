package collab

import (
	"context"
	"net/http"
)

// AuthClient talks to the authentication service, which resolves a session
// token to the caller's ledger address.
type AuthClient struct {
	client *Client
}

// NewAuthClient wraps a collaborator client for the authentication service.
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

// verifyResponse is the authentication service's token-resolution payload.
type verifyResponse struct {
	Data struct {
		Address string `json:"address"`
	} `json:"data"`
}

// VerifyToken resolves the session to the caller's address. An
// unauthenticated session surfaces as the service's 401, forwarded untouched.
func (a *AuthClient) VerifyToken(ctx context.Context, session Session) (string, error) {
	var resp verifyResponse
	err := a.client.CallJSON(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/auth/verify",
		Session: session,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Data.Address, nil
}
