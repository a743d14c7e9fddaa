// Package identity derives public keys from ledger addresses and answers the
// permission questions asked before any mutating pipeline step.
//
// Both checks are pure predicates: callers translate false into a
// permission-denied outcome. No side effects, no retries.
package identity

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"anchorgate/internal/did"
	"anchorgate/internal/documents"
)

// publicKeySize is the blake2b digest length used for key hashes (224 bits),
// matching the key hashes embedded in DID strings at registration time.
const publicKeySize = 28

// PublicKeyFromAddress derives the public key hash for a resolved ledger
// address. The same derivation is applied when a DID is registered, so a
// caller's address and their issuer DID agree on the final segment.
func PublicKeyFromAddress(address string) string {
	if address == "" {
		return ""
	}
	digest := blake2b.Sum256([]byte(address))
	return hex.EncodeToString(digest[:publicKeySize])
}

// VerifyIssuerMatch reports whether the resolved address belongs to the
// issuer named in the credential. The issuer DID carries the issuer's public
// key in its last segment.
func VerifyIssuerMatch(resolvedAddress, credentialIssuerDID string) bool {
	if resolvedAddress == "" || credentialIssuerDID == "" {
		return false
	}
	return PublicKeyFromAddress(resolvedAddress) == did.LastSegment(credentialIssuerDID)
}

// VerifyController reports whether the public key is a member of the DID
// document's controller set.
func VerifyController(doc documents.DIDDocument, publicKey string) bool {
	if publicKey == "" {
		return false
	}
	return doc.HasController(publicKey)
}
