package cleanup

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/wrkflw/wrkflw/internal/runtime"
)

type fakeRuntime struct {
	kind    runtime.Kind
	removed []string
}

func (f *fakeRuntime) Kind() runtime.Kind                                { return f.kind }
func (f *fakeRuntime) Availability(ctx context.Context) error            { return nil }
func (f *fakeRuntime) EnsureImage(ctx context.Context, ref string) error { return nil }
func (f *fakeRuntime) BuildImage(ctx context.Context, dir, tag string) error {
	return nil
}
func (f *fakeRuntime) CreateContainer(ctx context.Context, spec runtime.ContainerSpec) (*runtime.Handle, error) {
	return nil, nil
}
func (f *fakeRuntime) StartContainer(ctx context.Context, h *runtime.Handle) error { return nil }
func (f *fakeRuntime) Exec(ctx context.Context, h *runtime.Handle, argv []string, env map[string]string, cwd string, out io.Writer) (*runtime.ExecResult, error) {
	return nil, nil
}
func (f *fakeRuntime) CopyInto(ctx context.Context, h *runtime.Handle, src, dst string) error {
	return nil
}
func (f *fakeRuntime) CopyOut(ctx context.Context, h *runtime.Handle, src, dst string) error {
	return nil
}
func (f *fakeRuntime) Remove(ctx context.Context, h *runtime.Handle, force bool) error {
	f.removed = append(f.removed, h.ID)
	return nil
}
func (f *fakeRuntime) ServiceStart(ctx context.Context, spec runtime.ContainerSpec) (*runtime.Handle, error) {
	return nil, runtime.ErrUnsupportedInEmulation
}
func (f *fakeRuntime) ServiceStop(ctx context.Context, h *runtime.Handle) error {
	return runtime.ErrUnsupportedInEmulation
}

func TestReleaseRemovesUnfailedContainer(t *testing.T) {
	rt := &fakeRuntime{kind: runtime.KindDocker}
	reg := NewRegistry(true)
	h := &runtime.Handle{ID: "c1", Kind: runtime.KindDocker}
	reg.Track("build", rt, h)

	cmd, err := reg.Release(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if cmd != "" {
		t.Fatalf("expected no inspect command, got %q", cmd)
	}
	if len(rt.removed) != 1 || rt.removed[0] != "c1" {
		t.Fatalf("expected c1 removed, got %v", rt.removed)
	}
}

func TestReleasePreservesFailedContainerUnderPolicy(t *testing.T) {
	rt := &fakeRuntime{kind: runtime.KindDocker}
	reg := NewRegistry(true)
	h := &runtime.Handle{ID: "c2", Kind: runtime.KindDocker}
	reg.Track("build", rt, h)
	reg.MarkFailed("c2")

	cmd, err := reg.Release(context.Background(), "c2")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if cmd == "" || !strings.Contains(cmd, "c2") {
		t.Fatalf("expected an inspect command naming c2, got %q", cmd)
	}
	if len(rt.removed) != 0 {
		t.Fatalf("expected no removal, got %v", rt.removed)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	rt := &fakeRuntime{kind: runtime.KindDocker}
	reg := NewRegistry(false)
	h := &runtime.Handle{ID: "c3", Kind: runtime.KindDocker}
	reg.Track("build", rt, h)

	if _, err := reg.Release(context.Background(), "c3"); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if cmd, err := reg.Release(context.Background(), "c3"); err != nil || cmd != "" {
		t.Fatalf("second Release should be a no-op, got cmd=%q err=%v", cmd, err)
	}
	if len(rt.removed) != 1 {
		t.Fatalf("expected exactly one removal, got %v", rt.removed)
	}
}

func TestReleaseAllSweepsEverything(t *testing.T) {
	rt := &fakeRuntime{kind: runtime.KindDocker}
	reg := NewRegistry(false)
	reg.Track("a", rt, &runtime.Handle{ID: "c4"})
	reg.Track("b", rt, &runtime.Handle{ID: "c5"})

	reg.ReleaseAll(context.Background())
	if len(rt.removed) != 2 {
		t.Fatalf("expected both removed, got %v", rt.removed)
	}
}
