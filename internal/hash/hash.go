// Package hash provides content fingerprints and whole-file digests.
//
// Fingerprints identify entries and corrections for deduplication. They are
// the first 16 hex characters of a SHA-256 digest, which trades collision
// resistance for compact keys; they are not a security boundary.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintLen is the number of hex characters kept from the digest.
const FingerprintLen = 16

// Fingerprint returns the truncated digest of the trimmed text.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(h[:])[:FingerprintLen]
}

// File returns the full hex digest of raw file content, untrimmed.
// It is used only for drift detection between syncs.
func File(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Pair fingerprints an (incorrect, correct) correction pair. Each side is
// lowercased and its whitespace collapsed first.
func Pair(incorrect, correct string) string {
	return Fingerprint(normalize(incorrect) + "|" + normalize(correct))
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
