package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// LedgerClient talks to the ledger service, which commits hashes, mints
// credentials as ledger-tracked assets, and verifies hashes and signatures.
type LedgerClient struct {
	client *Client
}

// NewLedgerClient wraps a collaborator client for the ledger service.
func NewLedgerClient(client *Client) *LedgerClient {
	return &LedgerClient{client: client}
}

// StoreHashResult is the ledger's hash-commit outcome. Result is the literal
// string "true" on success; anything else is a refusal with a reason.
type StoreHashResult struct {
	Result string          `json:"result"`
	Raw    json.RawMessage `json:"-"`
}

// Committed reports whether the ledger accepted the hash.
func (r StoreHashResult) Committed() bool {
	return r.Result == "true"
}

// StoreHash commits targetHash against the issuer address on the ledger.
// The commit cannot be rolled back by this gateway.
func (l *LedgerClient) StoreHash(ctx context.Context, address, hash string, session Session) (StoreHashResult, error) {
	payload, err := l.client.Call(ctx, Request{
		Method: http.MethodPut,
		Path:   "/api/storeHash/",
		Body: map[string]any{
			"address": address,
			"hash":    hash,
		},
		Session: session,
	})
	if err != nil {
		return StoreHashResult{}, err
	}

	var result StoreHashResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return StoreHashResult{}, &Error{Collaborator: l.client.Name(), StatusCode: http.StatusOK, Body: payload, Err: err}
	}
	result.Raw = payload
	return result, nil
}

// MintResult is the ledger's credential-minting outcome. Code zero means the
// mint succeeded and Data carries the minted asset configuration.
type MintResult struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Raw     json.RawMessage `json:"-"`
}

// Minted reports whether the ledger recorded the credential.
func (r MintResult) Minted() bool {
	return r.Code == 0
}

// MintCredential asks the ledger to mint and record a credential.
func (l *LedgerClient) MintCredential(ctx context.Context, address string, payload, signature json.RawMessage, session Session) (MintResult, error) {
	raw, err := l.client.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/v2/credential",
		Body: map[string]any{
			"address":   address,
			"payload":   payload,
			"signature": signature,
		},
		Session: session,
	})
	if err != nil {
		return MintResult{}, err
	}

	var result MintResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return MintResult{}, &Error{Collaborator: l.client.Name(), StatusCode: http.StatusOK, Body: raw, Err: err}
	}
	result.Raw = raw
	return result, nil
}

// GetNFTs lists ledger assets minted under a policy.
func (l *LedgerClient) GetNFTs(ctx context.Context, policyID string, session Session) (json.RawMessage, error) {
	return l.client.Call(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/getNFTs/" + url.PathEscape(policyID),
		Session: session,
	})
}

// VerifyHash checks a document hash against the ledger.
func (l *LedgerClient) VerifyHash(ctx context.Context, policyID, hashOfDocument string, session Session) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("policyID", policyID)
	query.Set("hashOfDocument", hashOfDocument)
	return l.client.Call(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/verifyHash",
		Query:   query.Encode(),
		Session: session,
	})
}

// VerifySignature checks an address/payload/signature triple on the ledger.
func (l *LedgerClient) VerifySignature(ctx context.Context, address, payload, signature string, session Session) (json.RawMessage, error) {
	return l.client.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/verifySignature",
		Body: map[string]any{
			"address":   address,
			"payload":   payload,
			"signature": signature,
		},
		Session: session,
	})
}
