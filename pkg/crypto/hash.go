// Package crypto provides message fingerprints for routing audit trails.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ShortLen is the number of hex characters kept by Short
const ShortLen = 8

// Fingerprint returns the BLAKE2b-256 digest of wire text as hex
func Fingerprint(wire string) string {
	sum := blake2b.Sum256([]byte(wire))
	return hex.EncodeToString(sum[:])
}

// Short returns the leading characters of a fingerprint for log lines
func Short(fingerprint string) string {
	if len(fingerprint) <= ShortLen {
		return fingerprint
	}
	return fingerprint[:ShortLen]
}

// VerifyFingerprint reports whether fingerprint matches wire
func VerifyFingerprint(wire, fingerprint string) bool {
	actual := Fingerprint(wire)
	if len(actual) != len(fingerprint) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(actual), []byte(fingerprint)) == 1
}
