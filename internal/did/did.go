// Package did parses and validates decentralized identifier strings.
//
// Two shapes are accepted:
//
//	did:<method>:<companyName>:<publicKeyOrFileName>           (document DID)
//	did:<method>:<x>:<y>:<companyName>:<fileName>              (wrapped-document DID)
//
// Parsing is pure: no I/O, no side effects. A malformed DID must be rejected
// before any collaborator call is issued.
package did

import (
	"errors"
	"strings"
)

// Scheme is the required first segment of every DID.
const Scheme = "did"

// ErrInvalidSyntax reports a DID that does not satisfy the segment count or
// scheme requirements.
var ErrInvalidSyntax = errors.New("invalid DID syntax")

// DID holds the components of a 4-segment document DID.
type DID struct {
	Raw                 string
	Method              string
	CompanyName         string
	PublicKeyOrFileName string
}

// DocumentPath holds the components of a 6-segment wrapped-document DID.
type DocumentPath struct {
	Raw         string
	Method      string
	CompanyName string
	FileName    string
}

// Parse validates the 4-segment document form and returns its components.
func Parse(raw string) (DID, error) {
	segments := strings.Split(raw, ":")
	if len(segments) < 4 || segments[0] != Scheme {
		return DID{}, ErrInvalidSyntax
	}
	return DID{
		Raw:                 raw,
		Method:              segments[1],
		CompanyName:         segments[2],
		PublicKeyOrFileName: segments[3],
	}, nil
}

// ParseFullPath validates the 6-segment wrapped-document form. The company
// name and file name live in the fifth and sixth segments.
func ParseFullPath(raw string) (DocumentPath, error) {
	segments := strings.Split(raw, ":")
	if len(segments) < 6 || segments[0] != Scheme {
		return DocumentPath{}, ErrInvalidSyntax
	}
	return DocumentPath{
		Raw:         raw,
		Method:      segments[1],
		CompanyName: segments[4],
		FileName:    segments[5],
	}, nil
}

// LastSegment returns the final colon-delimited segment of a DID string.
// Credential issuer DIDs carry the issuer public key there.
func LastSegment(raw string) string {
	segments := strings.Split(raw, ":")
	return segments[len(segments)-1]
}
