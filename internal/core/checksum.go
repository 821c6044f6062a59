package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SHA256Hex returns the lowercase hex SHA-256 of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// StatementsChecksum hashes the concatenation of up and down statement lists.
// Both the runner ledger and generated diff migrations use this form.
func StatementsChecksum(up, down []string) string {
	joined := strings.Join(up, "\n") + "\n" + strings.Join(down, "\n")
	return SHA256Hex(joined)
}

// CanonicalJSON serializes v with encoding/json, which emits struct fields in
// declaration order and map keys sorted. Checksums over schema definitions
// rely on this being stable.
func CanonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return b, nil
}

// SchemaChecksum returns the hex SHA-256 over the canonical JSON form of a
// schema definition.
func SchemaChecksum(s *SchemaDefinition) (string, error) {
	b, err := CanonicalJSON(s)
	if err != nil {
		return "", err
	}
	return SHA256Hex(string(b)), nil
}
