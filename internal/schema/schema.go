// Package schema performs structural validation of credential and
// notification payloads. Validation is a pure function of the payload:
// no I/O, no side effects, a verdict plus human-readable detail.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Result is a validation verdict. Detail is empty when the payload is valid.
type Result struct {
	Valid  bool
	Detail string
}

// Validate checks a JSON payload against a schema document.
// A payload that cannot be loaded at all is reported as invalid rather
// than as an error; callers only branch on the verdict.
func Validate(schemaJSON string, payload json.RawMessage) Result {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	payloadLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, payloadLoader)
	if err != nil {
		return Result{Valid: false, Detail: err.Error()}
	}
	if result.Valid() {
		return Result{Valid: true}
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return Result{Valid: false, Detail: strings.Join(details, "; ")}
}

// Credential is the schema for verifiable credentials: a claim issued by one
// DID about a subject, optionally minted as a ledger-tracked asset.
const Credential = `{
  "type": "object",
  "required": ["issuer", "credentialSubject", "signature"],
  "properties": {
    "issuer": {
      "type": "string",
      "description": "DID of who issues this credential."
    },
    "credentialSubject": {
      "type": "object",
      "description": "Claims",
      "properties": {
        "object": {
          "type": "string",
          "description": "DID of wrapped document."
        },
        "newOwner": {
          "type": "string",
          "description": "DID of the new owner who can access the document."
        },
        "newHolder": {
          "type": "string",
          "description": "DID of the new holder who can access the document."
        },
        "action": {
          "type": "object",
          "description": "Define the action subject can do with the document.",
          "properties": {
            "code": { "type": "integer" },
            "value": { "type": "string" }
          }
        }
      }
    },
    "signature": {
      "type": "string",
      "description": "Signature of issuer."
    },
    "metadata": {
      "type": "object",
      "description": "Other data when create credential.",
      "properties": {
        "dateCreated": { "type": "string" }
      }
    },
    "mintingNFTconfig": {
      "type": "object",
      "description": "Config of the credential, in order to create a new one.",
      "properties": {
        "type": { "type": "string" },
        "asset": { "type": "string" },
        "policy": { "type": "object" }
      }
    }
  }
}`

// Notification is the schema for notification messages exchanged between DIDs.
const Notification = `{
  "type": "object",
  "required": ["sender", "receiver", "content"],
  "properties": {
    "sender": {
      "type": "string",
      "description": "DID of the sender."
    },
    "receiver": {
      "type": "string",
      "description": "DID of the receiver."
    },
    "content": {
      "type": "object",
      "description": "Notification content."
    }
  }
}`
