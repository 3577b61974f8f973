package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const fingerprintPrefix = "sha256:"

// Fingerprint returns the content address of a source document.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}

// ValidFingerprint reports whether fp has the form produced by Fingerprint.
func ValidFingerprint(fp string) bool {
	digest, ok := strings.CutPrefix(fp, fingerprintPrefix)
	if !ok || len(digest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

// fingerprintDigest strips the algorithm prefix, for use in file names and keys.
func fingerprintDigest(fp string) string {
	return strings.TrimPrefix(fp, fingerprintPrefix)
}
