package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash computes the storage key for a credential: SHA-256 over the
// hex encoding of the serialized credential. The hash is a pure function of
// the content, so identical credentials always map to the same key; this is
// the deduplication key the document controller relies on.
func ContentHash(raw json.RawMessage) string {
	hexed := hex.EncodeToString(raw)
	sum := sha256.Sum256([]byte(hexed))
	return hex.EncodeToString(sum[:])
}
