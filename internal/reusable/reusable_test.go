package reusable

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/wrkflw/wrkflw/internal/action"
	"github.com/wrkflw/wrkflw/internal/cleanup"
	"github.com/wrkflw/wrkflw/internal/job"
	"github.com/wrkflw/wrkflw/internal/runtime"
	"github.com/wrkflw/wrkflw/internal/step"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

func TestParseRefLocal(t *testing.T) {
	ref, err := ParseRef("./.github/workflows/called.yml")
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if !ref.Local || ref.Path != "./.github/workflows/called.yml" {
		t.Fatalf("got %+v", ref)
	}
}

func TestParseRefRemote(t *testing.T) {
	ref, err := ParseRef("octo/repo/.github/workflows/reusable.yml@v1")
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if ref.Owner != "octo" || ref.Repo != "repo" || ref.SubPath != ".github/workflows/reusable.yml" || ref.Tag != "v1" {
		t.Fatalf("got %+v", ref)
	}
	if ref.CacheKey() != "octo/repo@v1" {
		t.Fatalf("got cache key %q", ref.CacheKey())
	}
}

func TestParseRefMissingAt(t *testing.T) {
	if _, err := ParseRef("octo/repo/workflow.yml"); err == nil {
		t.Fatal("expected an error for a missing @ref")
	}
}

func TestResolveSecretsInheritWarns(t *testing.T) {
	out, warning := resolveSecrets("inherit")
	if len(out) != 0 {
		t.Fatalf("expected no secrets mapped, got %+v", out)
	}
	if warning == "" {
		t.Fatal("expected a warning for secrets: inherit")
	}
}

func TestResolveSecretsMapping(t *testing.T) {
	out, warning := resolveSecrets(map[string]any{"token": "abc"})
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if out["token"] != "abc" {
		t.Fatalf("got %+v", out)
	}
}

// fakeRuntime is a minimal in-memory runtime.Runtime sufficient to run a
// called workflow's steps without a real container engine.
type fakeRuntime struct{}

func (f *fakeRuntime) Kind() runtime.Kind                                    { return runtime.KindEmulation }
func (f *fakeRuntime) Availability(ctx context.Context) error                { return nil }
func (f *fakeRuntime) EnsureImage(ctx context.Context, ref string) error     { return nil }
func (f *fakeRuntime) BuildImage(ctx context.Context, dir, tag string) error { return nil }
func (f *fakeRuntime) CreateContainer(ctx context.Context, spec runtime.ContainerSpec) (*runtime.Handle, error) {
	return &runtime.Handle{ID: spec.Name, Kind: runtime.KindEmulation}, nil
}
func (f *fakeRuntime) StartContainer(ctx context.Context, h *runtime.Handle) error { return nil }
func (f *fakeRuntime) Exec(ctx context.Context, h *runtime.Handle, argv []string, env map[string]string, cwd string, out io.Writer) (*runtime.ExecResult, error) {
	return &runtime.ExecResult{ExitCode: 0}, nil
}
func (f *fakeRuntime) CopyInto(ctx context.Context, h *runtime.Handle, src, dst string) error {
	return nil
}
func (f *fakeRuntime) CopyOut(ctx context.Context, h *runtime.Handle, src, dst string) error {
	return nil
}
func (f *fakeRuntime) Remove(ctx context.Context, h *runtime.Handle, force bool) error { return nil }
func (f *fakeRuntime) ServiceStart(ctx context.Context, spec runtime.ContainerSpec) (*runtime.Handle, error) {
	return nil, runtime.ErrUnsupportedInEmulation
}
func (f *fakeRuntime) ServiceStop(ctx context.Context, h *runtime.Handle) error { return nil }

func TestCallRunsLocalWorkflowAndSucceeds(t *testing.T) {
	workspace := t.TempDir()
	wfDir := filepath.Join(workspace, ".github", "workflows")
	if err := os.MkdirAll(wfDir, 0o755); err != nil {
		t.Fatal(err)
	}
	called := `
name: called
on: workflow_call
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - id: greet
        run: echo hi
`
	calledPath := filepath.Join(wfDir, "called.yml")
	if err := os.WriteFile(calledPath, []byte(called), 0o644); err != nil {
		t.Fatal(err)
	}

	caller := &Caller{
		Base: job.Config{
			Runtime:  &fakeRuntime{},
			Resolver: action.NewResolver(nil),
			Cleanup:  cleanup.NewRegistry(false),
		},
	}
	callerJob := &workflow.Job{ID: "call-build", Uses: "./.github/workflows/called.yml", With: map[string]any{"greeting": "hi"}}

	res, err := caller.Call(context.Background(), callerJob, workspace)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Result != step.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}
