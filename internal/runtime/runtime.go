// Package runtime implements the uniform container/emulation contract:
// three interchangeable backends (Docker, Podman, Emulation) behind one
// Runtime interface, so the step and job executors never branch on which
// one is active.
package runtime

import (
	"context"
	"errors"
	"io"
)

// ErrUnsupportedInEmulation is returned by operations the emulation runtime
// cannot perform (services, building images, container actions).
var ErrUnsupportedInEmulation = errors.New("unsupported in emulation runtime")

// UnavailableError is returned by New when the requested runtime's CLI/daemon
// isn't reachable; callers should fall back to Emulation with a warning.
type UnavailableError struct {
	Kind string
	Err  error
}

func (e *UnavailableError) Error() string {
	return e.Kind + " unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Kind names which backend a Runtime instance is.
type Kind string

const (
	KindDocker    Kind = "docker"
	KindPodman    Kind = "podman"
	KindEmulation Kind = "emulation"
)

// ContainerSpec is the uniform spec passed to CreateContainer: image
// reference, sentinel command, env, binds, working directory, network
// mode, and runtime-specific extra options.
type ContainerSpec struct {
	Name       string
	Image      string
	Command    []string // usually a sleep sentinel so steps can exec repeatedly
	Env        map[string]string
	Binds      []Bind
	WorkingDir string
	Network    string
	Options    string // extra CLI options, e.g. from job.container.options
}

// Bind is one host↔container bind mount.
type Bind struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// Handle identifies a created container (or, in emulation, a host
// workspace) returned by CreateContainer.
type Handle struct {
	ID   string
	Kind Kind
}

// ExecResult is the outcome of one Exec call.
type ExecResult struct {
	ExitCode int
}

// Runtime is the contract every backend implements.
type Runtime interface {
	Kind() Kind

	// Availability probes the CLI/daemon. A non-nil *UnavailableError means
	// the caller should fall back to Emulation.
	Availability(ctx context.Context) error

	// EnsureImage pulls ref if it isn't already local. No-op for Emulation.
	EnsureImage(ctx context.Context, ref string) error

	// BuildImage builds dir's Dockerfile into tag. Fails with
	// ErrUnsupportedInEmulation under Emulation.
	BuildImage(ctx context.Context, dir, tag string) error

	// CreateContainer creates (but does not start) a container for spec,
	// or a host workspace handle under Emulation.
	CreateContainer(ctx context.Context, spec ContainerSpec) (*Handle, error)

	// StartContainer starts a created container. No-op under Emulation.
	StartContainer(ctx context.Context, h *Handle) error

	// Exec runs argv inside the container (or on the host, under
	// Emulation) with env and cwd, streaming combined output to out, and
	// returns the exit code.
	Exec(ctx context.Context, h *Handle, argv []string, env map[string]string, cwd string, out io.Writer) (*ExecResult, error)

	// CopyInto copies a host path into the container/workspace at dst.
	CopyInto(ctx context.Context, h *Handle, src, dst string) error
	// CopyOut copies a container/workspace path out to a host path.
	CopyOut(ctx context.Context, h *Handle, src, dst string) error

	// Remove tears down the container/workspace. Must be idempotent and
	// tolerate a handle already removed externally.
	Remove(ctx context.Context, h *Handle, force bool) error

	// ServiceStart/ServiceStop manage a job's services: entries. Fail with
	// ErrUnsupportedInEmulation under Emulation.
	ServiceStart(ctx context.Context, spec ContainerSpec) (*Handle, error)
	ServiceStop(ctx context.Context, h *Handle) error
}

// New constructs the Runtime for kind. If kind is Docker or Podman and its
// CLI/daemon isn't reachable, New returns an *UnavailableError so the
// caller can fall back to Emulation (treated as a warning, not fatal).
func New(ctx context.Context, kind Kind) (Runtime, error) {
	switch kind {
	case KindDocker:
		rt := newCLIRuntime(KindDocker, "docker", false)
		if err := rt.Availability(ctx); err != nil {
			return nil, err
		}
		return rt, nil
	case KindPodman:
		rt := newCLIRuntime(KindPodman, "podman", true)
		if err := rt.Availability(ctx); err != nil {
			return nil, err
		}
		return rt, nil
	case KindEmulation:
		return newEmulationRuntime(), nil
	default:
		return nil, errors.New("unknown runtime kind: " + string(kind))
	}
}
