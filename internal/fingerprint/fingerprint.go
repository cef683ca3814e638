// Package fingerprint provides a deterministic dataset fingerprint from uploaded file bytes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "sha256:"

// Of returns a stable fingerprint for content.
// Same bytes always yield the same fingerprint, whatever the file name.
func Of(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:])
}

