// Package documents defines the document shapes exchanged with the document
// controller: DID documents, wrapped documents, and stored credentials.
package documents

import "encoding/json"

// DIDDocument describes a DID's controller, owner, and holder keys.
// It is created through the resolver surface and read by the issuance
// pipeline for permission checks.
type DIDDocument struct {
	Controller []string `json:"controller"`
	Owner      string   `json:"owner,omitempty"`
	Holder     string   `json:"holder,omitempty"`
}

// HasController reports whether the public key is in the controller set.
func (d DIDDocument) HasController(publicKey string) bool {
	for _, key := range d.Controller {
		if key == publicKey {
			return true
		}
	}
	return false
}

// Issuer is one signing party embedded in a wrapped document.
type Issuer struct {
	Address string `json:"address"`
}

// WrappedData is the data section of a wrapped document. The embedded DID
// uses the 6-segment wrapped-document form.
type WrappedData struct {
	DDIDDocument string   `json:"ddidDocument"`
	Issuers      []Issuer `json:"issuers"`
}

// DocSignature carries the wrapped document's integrity hash.
type DocSignature struct {
	TargetHash string `json:"targetHash"`
}

// WrappedDocument is a document wrapped with an embedded DID, issuer address,
// and integrity hash. Raw preserves the full caller payload so it can be
// persisted verbatim after anchoring.
type WrappedDocument struct {
	Data      WrappedData  `json:"data"`
	Signature DocSignature `json:"signature"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and retains the raw payload.
func (w *WrappedDocument) UnmarshalJSON(b []byte) error {
	type alias WrappedDocument
	var decoded alias
	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}
	*w = WrappedDocument(decoded)
	w.Raw = append([]byte(nil), b...)
	return nil
}

// MarshalJSON re-emits the original payload when present so no caller fields
// are lost on the way to the document controller.
func (w WrappedDocument) MarshalJSON() ([]byte, error) {
	if len(w.Raw) > 0 {
		return w.Raw, nil
	}
	type alias WrappedDocument
	return json.Marshal(alias(w))
}

// Address returns the first issuer's ledger address, or "" when absent.
func (w WrappedDocument) Address() string {
	if len(w.Data.Issuers) == 0 {
		return ""
	}
	return w.Data.Issuers[0].Address
}
