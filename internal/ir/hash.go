package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashes.
// Version suffix enables future algorithm migration.
const (
	DomainRulePayload = "ingestlab/rules/v1"
	DomainRowKey      = "ingestlab/row/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadHash computes the identity of a raw rule payload.
// Semantically identical payloads (same keys and values in any order) hash
// identically.
func PayloadHash(raw map[string]any) (string, error) {
	canonical, err := MarshalCanonical(raw)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRulePayload, canonical), nil
}

// RowHash computes a fixed-length digest of a row's canonical key.
func RowHash(r Row) string {
	return hashWithDomain(DomainRowKey, []byte(r.Key()))
}
