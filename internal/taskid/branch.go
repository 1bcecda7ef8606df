package taskid

import (
	"fmt"
	"strconv"
	"strings"
)

// BranchPrefix is the fixed prefix for all task branches.
const BranchPrefix = "claude-step"

// RefForm distinguishes the two task reference formats found in branch names.
type RefForm string

const (
	// RefHash is the content-addressed form: an 8-character hex identifier.
	RefHash RefForm = "hash"
	// RefIndex is the legacy positional form: a bare task index. Supported
	// only during the migration window; new branches always use RefHash.
	RefIndex RefForm = "index"
)

// TaskRef is a tagged variant holding either a content hash or a legacy
// positional index. Format detection lives in ParseBranchName and nowhere
// else; call sites switch on Form instead of re-sniffing strings.
type TaskRef struct {
	Form  RefForm
	Hash  string // set when Form == RefHash
	Index int    // set when Form == RefIndex
}

// String returns the token as it appears in a branch name.
func (r TaskRef) String() string {
	if r.Form == RefIndex {
		return strconv.Itoa(r.Index)
	}
	return r.Hash
}

// ParseError indicates a branch name or token that fits neither reference form.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

// BranchName builds the branch name for a task:
// "claude-step-<project>-<identifier>".
func BranchName(project, identifier string) string {
	return fmt.Sprintf("%s-%s-%s", BranchPrefix, project, identifier)
}

// ParseBranchName splits a task branch into its project and task reference.
// The trailing token is classified as a hash (8 lowercase hex chars) or a
// legacy index (bare integer); anything else is a parse failure. Hash
// detection runs first, so an all-digit 8-character token is a hash.
//
// Project names may themselves contain hyphens, so the token is taken from
// the last hyphen.
func ParseBranchName(branch string) (project string, ref TaskRef, err error) {
	rest, ok := strings.CutPrefix(branch, BranchPrefix+"-")
	if !ok {
		return "", TaskRef{}, &ParseError{Input: branch, Reason: fmt.Sprintf("missing %q prefix", BranchPrefix)}
	}

	idx := strings.LastIndex(rest, "-")
	if idx <= 0 || idx == len(rest)-1 {
		return "", TaskRef{}, &ParseError{Input: branch, Reason: "expected <project>-<token>"}
	}
	project, token := rest[:idx], rest[idx+1:]
	if strings.HasPrefix(project, "-") || strings.HasSuffix(project, "-") {
		return "", TaskRef{}, &ParseError{Input: branch, Reason: fmt.Sprintf("malformed project name %q", project)}
	}

	if IsIdentifier(token) {
		return project, TaskRef{Form: RefHash, Hash: token}, nil
	}
	if isDigits(token) {
		n, convErr := strconv.Atoi(token)
		if convErr != nil {
			return "", TaskRef{}, &ParseError{Input: branch, Reason: fmt.Sprintf("index %q out of range", token)}
		}
		return project, TaskRef{Form: RefIndex, Index: n}, nil
	}
	return "", TaskRef{}, &ParseError{Input: branch, Reason: fmt.Sprintf("token %q is neither an identifier nor an index", token)}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
