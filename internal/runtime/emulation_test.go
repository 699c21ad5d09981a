package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEmulationExecCapturesOutputAndExitCode(t *testing.T) {
	rt := newEmulationRuntime()
	ctx := context.Background()

	h, err := rt.CreateContainer(ctx, ContainerSpec{Name: "t"})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	defer rt.Remove(ctx, h, true) //nolint:errcheck

	var buf bytes.Buffer
	res, err := rt.Exec(ctx, h, []string{"sh", "-c", "echo hi && exit 3"}, nil, h.ID, &buf)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if buf.String() != "hi\n" {
		t.Fatalf("expected %q, got %q", "hi\n", buf.String())
	}
}

func TestEmulationRemoveIsIdempotent(t *testing.T) {
	rt := newEmulationRuntime()
	ctx := context.Background()

	h, err := rt.CreateContainer(ctx, ContainerSpec{Name: "t2"})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if err := rt.Remove(ctx, h, true); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := rt.Remove(ctx, h, true); err != nil {
		t.Fatalf("second Remove should be a no-op, got: %v", err)
	}
}

func TestEmulationCopyIntoAndOut(t *testing.T) {
	rt := newEmulationRuntime()
	ctx := context.Background()

	h, err := rt.CreateContainer(ctx, ContainerSpec{Name: "t3"})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	defer rt.Remove(ctx, h, true) //nolint:errcheck

	src := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dst := filepath.Join(h.ID, "in.txt")
	if err := rt.CopyInto(ctx, h, src, dst); err != nil {
		t.Fatalf("CopyInto: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out.txt")
	if err := rt.CopyOut(ctx, h, dst, out); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
	data, err := os.ReadFile(out) //nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("expected payload, got %q", string(data))
	}
}

func TestEmulationServicesUnsupported(t *testing.T) {
	rt := newEmulationRuntime()
	ctx := context.Background()
	if _, err := rt.ServiceStart(ctx, ContainerSpec{Name: "svc"}); err != ErrUnsupportedInEmulation {
		t.Fatalf("expected ErrUnsupportedInEmulation, got %v", err)
	}
	if err := rt.BuildImage(ctx, ".", "tag"); err != ErrUnsupportedInEmulation {
		t.Fatalf("expected ErrUnsupportedInEmulation, got %v", err)
	}
}
