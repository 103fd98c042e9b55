// Package evidence provides the digest service used to seal bundles and to
// fingerprint individual byte sources such as process images.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Algorithm names the digest algorithm recorded in every integrity record.
const Algorithm = "sha256"

// Record ties a digest to the algorithm that produced it.
type Record struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

// Digest computes the hex-encoded SHA-256 of data. Identical input always
// yields an identical digest.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewRecord computes the integrity record for data.
func NewRecord(data []byte) Record {
	return Record{Algorithm: Algorithm, Digest: Digest(data)}
}

// HashFile computes the SHA-256 of the file at path using streaming I/O.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("evidence: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("evidence: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
