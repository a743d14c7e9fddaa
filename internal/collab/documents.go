package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"anchorgate/internal/documents"
)

// DocumentsClient talks to the document controller, the durable store for
// DID documents, wrapped documents, and credentials. Lookups are keyed by
// (companyName, fileName) or by content hash, passed as headers per the
// controller's contract.
type DocumentsClient struct {
	client *Client
}

// NewDocumentsClient wraps a collaborator client for the document controller.
func NewDocumentsClient(client *Client) *DocumentsClient {
	return &DocumentsClient{client: client}
}

// existsResponse is the controller's existence-check payload.
type existsResponse struct {
	IsExisted bool `json:"isExisted"`
}

// Exists asks whether (companyName, fileName) already has a stored document.
func (d *DocumentsClient) Exists(ctx context.Context, companyName, fileName string, session Session) (bool, error) {
	var resp existsResponse
	err := d.client.CallJSON(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/doc/exists/",
		Headers: map[string]string{"companyName": companyName, "fileName": fileName},
		Session: session,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.IsExisted, nil
}

// CreateDIDDocument stores a DID document under (companyName, publicKey).
func (d *DocumentsClient) CreateDIDDocument(ctx context.Context, companyName, publicKey string, content json.RawMessage, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/did/",
		Body: map[string]any{
			"companyName": companyName,
			"publicKey":   publicKey,
			"content":     content,
		},
		Session: session,
	})
}

// GetDIDDocument retrieves the DID document stored under (companyName, fileName).
func (d *DocumentsClient) GetDIDDocument(ctx context.Context, companyName, fileName string, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/did/",
		Headers: map[string]string{"companyName": companyName, "fileName": fileName},
		Session: session,
	})
}

// DIDExists reports whether a DID document is stored for (companyName, publicKey).
// The controller answers lookups for unknown DIDs with a 2xx error_code
// envelope (or a plain 404), which surfaces here as false. Any other failure,
// a controller 5xx included, is a real error and propagates.
func (d *DocumentsClient) DIDExists(ctx context.Context, companyName, publicKey string, session Session) (bool, error) {
	_, err := d.client.Call(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/did/",
		Headers: map[string]string{"companyName": companyName, "publicKey": publicKey},
		Session: session,
	})
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && (ce.AppCode != 0 || ce.StatusCode == http.StatusNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// StoreDocument persists an anchored wrapped document.
func (d *DocumentsClient) StoreDocument(ctx context.Context, companyName, fileName string, doc documents.WrappedDocument, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/doc/",
		Body: map[string]any{
			"fileName":        fileName,
			"wrappedDocument": doc,
			"companyName":     companyName,
		},
		Session: session,
	})
}

// FetchedDocuments bundles the DID document and wrapped document stored for
// one (companyName, fileName) key.
type FetchedDocuments struct {
	DIDDoc     documents.DIDDocument `json:"didDoc"`
	WrappedDoc json.RawMessage       `json:"wrappedDoc"`
}

// GetDocuments retrieves both documents for (companyName, fileName) in one call.
func (d *DocumentsClient) GetDocuments(ctx context.Context, companyName, fileName string, session Session) (*FetchedDocuments, error) {
	var resp FetchedDocuments
	err := d.client.CallJSON(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/doc",
		Headers: map[string]string{"companyName": companyName, "fileName": fileName},
		Session: session,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// StoreCredential persists a credential keyed by its content hash.
func (d *DocumentsClient) StoreCredential(ctx context.Context, hash string, content json.RawMessage, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/credential",
		Body: map[string]any{
			"hash":    hash,
			"content": content,
		},
		Session: session,
	})
}

// GetCredential retrieves a stored credential by content hash.
func (d *DocumentsClient) GetCredential(ctx context.Context, hash string, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/credential",
		Headers: map[string]string{"hash": hash},
		Session: session,
	})
}

// UpdateCredential replaces a stored credential's content, keyed by the
// original content hash.
func (d *DocumentsClient) UpdateCredential(ctx context.Context, hash string, content json.RawMessage, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method: http.MethodPut,
		Path:   "/api/credential",
		Body: map[string]any{
			"hash":    hash,
			"content": content,
		},
		Session: session,
	})
}

// StoreMessage persists a notification message.
func (d *DocumentsClient) StoreMessage(ctx context.Context, message json.RawMessage, session Session) (json.RawMessage, error) {
	return d.client.Call(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/api/message/",
		Body:    map[string]any{"message": message},
		Session: session,
	})
}
