// Package sha256 fingerprints exported artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags digests produced by this package.
const Prefix = "sha256:"

// Hasher implements app.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the prefixed hex digest of data, e.g. "sha256:b94d...".
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
