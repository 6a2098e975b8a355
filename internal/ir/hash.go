package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFilter = "nestq/filter/v1"
	DomainQuery  = "nestq/query/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Key computes the content-addressed key of a descriptor under a domain.
// The descriptor must be canonically marshalable.
func Key(domain string, descriptor any) (string, error) {
	canonical, err := MarshalCanonical(descriptor)
	if err != nil {
		return "", fmt.Errorf("key %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustKey is like Key but panics on error.
// Use only when the descriptor is known to be valid.
func MustKey(domain string, descriptor any) string {
	k, err := Key(domain, descriptor)
	if err != nil {
		panic(err)
	}
	return k
}
