package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RuleSetHash computes a content hash over a compiled rule list.
//
// Serialization is deterministic (MarshalRules emits sorted map keys), so
// structurally equal rule sets always hash identically. The hash versions a
// world's rule set in the store and lets round-trip tests assert equality
// without deep comparison.
func RuleSetHash(rules []Rule) (string, error) {
	data, err := MarshalRules(rules)
	if err != nil {
		return "", fmt.Errorf("rule set hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
