// Package action resolves a step's `uses:` reference into a classified,
// ready-to-run action: local or remote source, then container/node/composite
// per its manifest's runs.using.
package action

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wrkflw/wrkflw/internal/cache"
)

// Kind classifies how a resolved action must be executed.
type Kind string

const (
	KindDocker    Kind = "docker"
	KindNode      Kind = "node"
	KindComposite Kind = "composite"
	KindCheckout  Kind = "checkout" // actions/checkout, handled natively
)

// Ref is a parsed `uses:` value.
type Ref struct {
	Local bool   // ./path form
	Path  string // local path, or remote sub-action path
	Owner string
	Repo  string
	Tag   string // @ref
}

// String renders the ref the way it appeared in source, for logging and
// cache-key display.
func (r Ref) String() string {
	if r.Local {
		return r.Path
	}
	s := r.Owner + "/" + r.Repo
	if r.Path != "" {
		s += "/" + r.Path
	}
	if r.Tag != "" {
		s += "@" + r.Tag
	}
	return s
}

// CacheKey is the remote action cache's identity: owner/repo@ref, without
// the sub-action path, so sibling sub-actions of one repo share a clone.
func (r Ref) CacheKey() string {
	return r.Owner + "/" + r.Repo + "@" + r.Tag
}

// ParseRef classifies a `uses:` string into local or remote form.
func ParseRef(uses string) (Ref, error) {
	if uses == "" {
		return Ref{}, fmt.Errorf("empty uses reference")
	}
	if strings.HasPrefix(uses, "./") || strings.HasPrefix(uses, "../") {
		return Ref{Local: true, Path: uses}, nil
	}

	atIdx := strings.LastIndex(uses, "@")
	if atIdx < 0 {
		return Ref{}, fmt.Errorf("remote action %q is missing an @ref", uses)
	}
	rest, tag := uses[:atIdx], uses[atIdx+1:]
	if tag == "" {
		return Ref{}, fmt.Errorf("remote action %q has an empty ref", uses)
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 {
		return Ref{}, fmt.Errorf("remote action %q must be owner/repo[/path]@ref", uses)
	}
	r := Ref{Owner: parts[0], Repo: parts[1], Tag: tag}
	if len(parts) == 3 {
		r.Path = parts[2]
	}
	return r, nil
}

// IsCheckout reports whether ref is the actions/checkout special case.
func (r Ref) IsCheckout() bool {
	return !r.Local && r.Owner == "actions" && r.Repo == "checkout"
}

// Resolved is an action ready for the step executor to run.
type Resolved struct {
	Kind Kind
	Dir  string // directory containing action.yml (or the action's source tree)
	Manifest
	// Steps are the composite action's own steps, only set when Kind ==
	// KindComposite.
	Steps []CompositeStep
}

// Resolver resolves `uses:` references, using a cache.Store for remote ones.
type Resolver struct {
	Cache *cache.Store // nil disables remote resolution
}

// NewResolver builds a Resolver backed by store for remote action lookups.
func NewResolver(store *cache.Store) *Resolver {
	return &Resolver{Cache: store}
}

// Resolve classifies and loads the action referenced by uses, relative to
// workspaceDir for local references.
func (r *Resolver) Resolve(ctx context.Context, uses, workspaceDir string) (*Resolved, error) {
	ref, err := ParseRef(uses)
	if err != nil {
		return nil, err
	}
	if ref.IsCheckout() {
		return &Resolved{Kind: KindCheckout}, nil
	}

	dir, err := r.materialize(ctx, ref, workspaceDir)
	if err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("loading action manifest for %s: %w", ref, err)
	}

	resolved := &Resolved{Dir: dir, Manifest: *manifest}
	switch {
	case strings.HasPrefix(manifest.Runs.Using, "node"):
		resolved.Kind = KindNode
	case manifest.Runs.Using == "docker":
		resolved.Kind = KindDocker
	case manifest.Runs.Using == "composite":
		resolved.Kind = KindComposite
		resolved.Steps = manifest.Runs.Steps
	default:
		return nil, fmt.Errorf("action %s: unsupported runs.using %q", ref, manifest.Runs.Using)
	}
	return resolved, nil
}

// materialize returns the directory holding the action's source, cloning a
// remote ref into the cache first if necessary.
func (r *Resolver) materialize(ctx context.Context, ref Ref, workspaceDir string) (string, error) {
	if ref.Local {
		dir := filepath.Join(workspaceDir, ref.Path)
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("local action %s not found under workspace: %w", ref.Path, err)
		}
		return dir, nil
	}
	if r.Cache == nil {
		return "", fmt.Errorf("remote action %s requires a resolver cache", ref)
	}
	root, err := r.Cache.Ensure(ctx, ref.CacheKey(), func(dir string) error {
		return shallowClone(ctx, ref.Owner, ref.Repo, ref.Tag, dir)
	})
	if err != nil {
		return "", err
	}
	if ref.Path != "" {
		return filepath.Join(root, ref.Path), nil
	}
	return root, nil
}

// DockerImageTag deterministically names a locally-built container action
// image so repeated runs of the same action reuse it.
func DockerImageTag(ref Ref) string {
	id := ref.String()
	if !ref.Local {
		id = ref.CacheKey()
	}
	sum := sha256.Sum256([]byte(id))
	return "wrkflw-action-" + hex.EncodeToString(sum[:])[:8]
}
