// Package commit turns arbitrary text into a fixed-size content commitment.
// The ledger stores digests and lengths, never raw content; verifying a
// deliverable later means re-hashing candidate content and comparing.
package commit

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the commitment size in bytes (Keccak-256).
const DigestSize = 32

// Digest is a 32-byte Keccak-256 content commitment.
type Digest [DigestSize]byte

// Hash computes the commitment and length for a piece of content.
// Deterministic and pure: the same content always yields the same digest.
func Hash(content string) (Digest, int64) {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(content))

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, int64(len(content))
}

// String renders the digest as 0x-prefixed hex, the form stored by the ledger.
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses a 0x-prefixed (or bare) hex commitment.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimPrefix(s, "0x")

	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("parse digest: got %d bytes, want %d", len(raw), DigestSize)
	}
	copy(d[:], raw)
	return d, nil
}

// Verify re-hashes candidate content and checks it against a stored
// commitment plus length. This is the round-trip the escrow relies on.
func Verify(content string, digest string, length int64) bool {
	want, err := ParseDigest(digest)
	if err != nil {
		return false
	}
	got, n := Hash(content)
	return got == want && n == length
}
