// Package reusable implements the reusable-workflow caller: resolving a
// `uses:` job's workflow reference, loading the target via the normal
// parser, mapping the caller's with:/secrets: into a fresh execution
// context, and driving the callee through its own scheduler run.
package reusable

import (
	"fmt"
	"strings"
)

// Ref is a parsed job-level `uses:` workflow reference.
type Ref struct {
	Local bool
	Path  string // set when Local: relative to the caller's workspace

	Owner   string
	Repo    string
	SubPath string
	Tag     string
}

// CacheKey is the content-address key remote refs are cached under,
// matching actions' owner/repo@ref convention so both share one cache
// directory layout.
func (r Ref) CacheKey() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Repo, r.Tag)
}

// ParseRef parses a caller job's `uses:` value into either a local workflow
// path or a remote owner/repo/path@ref.
func ParseRef(uses string) (Ref, error) {
	if strings.HasPrefix(uses, "./") || strings.HasPrefix(uses, "../") {
		return Ref{Local: true, Path: uses}, nil
	}

	at := strings.LastIndex(uses, "@")
	if at < 0 {
		return Ref{}, fmt.Errorf("reusable workflow ref %q: missing @ref", uses)
	}
	tag := uses[at+1:]
	if tag == "" {
		return Ref{}, fmt.Errorf("reusable workflow ref %q: empty @ref", uses)
	}

	parts := strings.SplitN(uses[:at], "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Ref{}, fmt.Errorf("reusable workflow ref %q: expected owner/repo/path@ref", uses)
	}
	return Ref{Owner: parts[0], Repo: parts[1], SubPath: parts[2], Tag: tag}, nil
}
