// Package checksum fingerprints note content so that unchanged notes can be
// skipped by the ledger, the header cache and the auto-sync trigger.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for note text already held as a string.
func String(s string) string {
	return Sum([]byte(s))
}
