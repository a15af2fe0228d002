package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for changing the hashed form later.
const (
	DomainModule = "cpurt/module/v1"
	DomainAttrs  = "cpurt/attrs/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content hash of the module's printed form.
// Two modules print identically if and only if they have the same
// functions, ops, types and attributes in the same order, so a pass that
// leaves the fingerprint unchanged made no observable change.
func Fingerprint(m *Module) string {
	return hashWithDomain(DomainModule, []byte(Print(m)))
}

// AttrsHash computes a content hash of an attribute dictionary.
func AttrsHash(attrs IRObject) (string, error) {
	canonical, err := MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("AttrsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAttrs, canonical), nil
}
