package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// cliRuntime drives a container runtime through its CLI (docker or podman).
// The two differ only in binary name and in whether bind mounts need the
// SELinux relabel suffix podman's rootless mode requires.
type cliRuntime struct {
	kind      Kind
	bin       string
	selinux   bool
	pullRetry retryConfig
}

func newCLIRuntime(kind Kind, bin string, selinux bool) *cliRuntime {
	return &cliRuntime{kind: kind, bin: bin, selinux: selinux, pullRetry: defaultPullRetry}
}

func (r *cliRuntime) Kind() Kind { return r.kind }

func (r *cliRuntime) Availability(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(cctx, r.bin, "info")
	if err := cmd.Run(); err != nil {
		return &UnavailableError{Kind: string(r.kind), Err: fmt.Errorf("probing %s daemon: %w", r.bin, err)}
	}
	return nil
}

// EnsureImage pulls ref if missing, retrying a failed pull with backoff;
// every pull failure is retried, with no transient/permanent classification.
func (r *cliRuntime) EnsureImage(ctx context.Context, ref string) error {
	checkCmd := exec.CommandContext(ctx, r.bin, "image", "inspect", ref)
	if err := checkCmd.Run(); err == nil {
		return nil // already local
	}

	return runWithRetry(ctx, r.pullRetry, func() error {
		cmd := exec.CommandContext(ctx, r.bin, "pull", ref)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("pulling image %s: %w: %s", ref, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	})
}

func (r *cliRuntime) BuildImage(ctx context.Context, dir, tag string) error {
	cmd := exec.CommandContext(ctx, r.bin, "build", "-t", tag, dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("building image %s from %s: %w: %s", tag, dir, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *cliRuntime) CreateContainer(ctx context.Context, spec ContainerSpec) (*Handle, error) {
	args := []string{"create", "--name", spec.Name}
	if spec.WorkingDir != "" {
		args = append(args, "-w", spec.WorkingDir)
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	for k, v := range spec.Env {
		args = append(args, "-e", k+"="+v)
	}
	for _, b := range spec.Binds {
		args = append(args, "-v", r.bindString(b))
	}
	if spec.Options != "" {
		args = append(args, strings.Fields(spec.Options)...)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("creating container %s: %w: %s", spec.Name, err, strings.TrimSpace(stderr.String()))
	}
	id := strings.TrimSpace(stdout.String())
	return &Handle{ID: id, Kind: r.kind}, nil
}

// bindString renders one bind mount, adding podman's rootless SELinux
// relabel flag (:Z) when required.
func (r *cliRuntime) bindString(b Bind) string {
	s := b.HostPath + ":" + b.ContainerPath
	flags := []string{}
	if b.ReadOnly {
		flags = append(flags, "ro")
	}
	if r.selinux {
		flags = append(flags, "Z")
	}
	if len(flags) > 0 {
		s += ":" + strings.Join(flags, ",")
	}
	return s
}

func (r *cliRuntime) StartContainer(ctx context.Context, h *Handle) error {
	cmd := exec.CommandContext(ctx, r.bin, "start", h.ID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("starting container %s: %w: %s", h.ID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *cliRuntime) Exec(ctx context.Context, h *Handle, argv []string, env map[string]string, cwd string, out io.Writer) (*ExecResult, error) {
	args := []string{"exec"}
	if cwd != "" {
		args = append(args, "-w", cwd)
	}
	for k, v := range env {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, h.ID)
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExecResult{ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, fmt.Errorf("exec in container %s: %w", h.ID, err)
	}
	return &ExecResult{ExitCode: 0}, nil
}

func (r *cliRuntime) CopyInto(ctx context.Context, h *Handle, src, dst string) error {
	cmd := exec.CommandContext(ctx, r.bin, "cp", src, h.ID+":"+dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying %s into container %s: %w: %s", src, h.ID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *cliRuntime) CopyOut(ctx context.Context, h *Handle, src, dst string) error {
	cmd := exec.CommandContext(ctx, r.bin, "cp", h.ID+":"+src, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying %s out of container %s: %w: %s", src, h.ID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *cliRuntime) Remove(ctx context.Context, h *Handle, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, h.ID)
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "No such container") {
			return nil // idempotent: already removed externally
		}
		return fmt.Errorf("removing container %s: %w: %s", h.ID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *cliRuntime) ServiceStart(ctx context.Context, spec ContainerSpec) (*Handle, error) {
	h, err := r.CreateContainer(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := r.StartContainer(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (r *cliRuntime) ServiceStop(ctx context.Context, h *Handle) error {
	return r.Remove(ctx, h, true)
}
