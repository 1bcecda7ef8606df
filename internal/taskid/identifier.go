// Package taskid derives stable, content-addressed identifiers for tasks and
// the branch names that carry them. Identifiers survive task reordering and
// insertion in the spec because they depend only on the task's text.
package taskid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// IdentifierLength is the number of hex characters in a task identifier.
const IdentifierLength = 8

// Normalize collapses internal whitespace runs to single spaces and trims
// leading/trailing whitespace. Two descriptions that normalize equally are
// the same task.
func Normalize(description string) string {
	return strings.Join(strings.Fields(description), " ")
}

// IdentifierFor derives the stable identifier for a task description:
// normalize, SHA-256, first 8 hex characters of the digest.
//
// This is a total function: every input, including the empty string, produces
// a valid identifier. The algorithm is a portability contract, not an
// implementation detail - identifiers are persisted and compared across
// independently deployed runs, so the normalization and hash must never change.
func IdentifierFor(description string) string {
	sum := sha256.Sum256([]byte(Normalize(description)))
	return hex.EncodeToString(sum[:])[:IdentifierLength]
}

// IsIdentifier reports whether s has the exact form of a task identifier:
// 8 lowercase hex characters.
func IsIdentifier(s string) bool {
	if len(s) != IdentifierLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ValidSet computes the identifier set for the current spec's task descriptions.
func ValidSet(descriptions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(descriptions))
	for _, d := range descriptions {
		set[IdentifierFor(d)] = struct{}{}
	}
	return set
}
