package runtime

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// emulationRuntime runs steps directly on the host, reproducing just enough
// of a container's isolation contract (its own working directory, its own
// env) without a container engine.
type emulationRuntime struct{}

func newEmulationRuntime() *emulationRuntime { return &emulationRuntime{} }

func (e *emulationRuntime) Kind() Kind { return KindEmulation }

func (e *emulationRuntime) Availability(ctx context.Context) error { return nil }

func (e *emulationRuntime) EnsureImage(ctx context.Context, ref string) error { return nil }

func (e *emulationRuntime) BuildImage(ctx context.Context, dir, tag string) error {
	return ErrUnsupportedInEmulation
}

func (e *emulationRuntime) CreateContainer(ctx context.Context, spec ContainerSpec) (*Handle, error) {
	dir, err := os.MkdirTemp("", "wrkflw-emu-*")
	if err != nil {
		return nil, err
	}
	for _, b := range spec.Binds {
		target := filepath.Join(dir, filepath.Base(b.ContainerPath))
		if err := os.Symlink(b.HostPath, target); err != nil {
			// best-effort: emulation mode shares the host filesystem anyway
			continue
		}
	}
	return &Handle{ID: dir, Kind: KindEmulation}, nil
}

func (e *emulationRuntime) StartContainer(ctx context.Context, h *Handle) error { return nil }

// Exec spawns argv directly on the host in its own process group so that a
// soft-cancel can signal the whole tree, not just the immediate child.
func (e *emulationRuntime) Exec(ctx context.Context, h *Handle, argv []string, env map[string]string, cwd string, out io.Writer) (*ExecResult, error) {
	if len(argv) == 0 {
		return &ExecResult{ExitCode: 0}, nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = mergeOSEnv(env)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killGroup(cmd.Process.Pid)
		<-done
		return nil, ctx.Err()
	case err := <-done:
		if err == nil {
			return &ExecResult{ExitCode: 0}, nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExecResult{ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, err
	}
}

// killGroup signals a step's entire process group, not just the immediate
// child, so a cancelled step can't leave grandchildren running on the host.
func killGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGTERM)
}

func mergeOSEnv(env map[string]string) []string {
	out := os.Environ()
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func (e *emulationRuntime) CopyInto(ctx context.Context, h *Handle, src, dst string) error {
	return copyFile(src, dst)
}

func (e *emulationRuntime) CopyOut(ctx context.Context, h *Handle, src, dst string) error {
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // workspace-internal copy
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644) //nolint:gosec // workspace-internal copy
}

func (e *emulationRuntime) Remove(ctx context.Context, h *Handle, force bool) error {
	if h == nil || h.ID == "" {
		return nil
	}
	if err := os.RemoveAll(h.ID); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (e *emulationRuntime) ServiceStart(ctx context.Context, spec ContainerSpec) (*Handle, error) {
	return nil, ErrUnsupportedInEmulation
}

func (e *emulationRuntime) ServiceStop(ctx context.Context, h *Handle) error {
	return ErrUnsupportedInEmulation
}
