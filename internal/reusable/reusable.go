package reusable

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wrkflw/wrkflw/internal/cache"
	"github.com/wrkflw/wrkflw/internal/gitctx"
	"github.com/wrkflw/wrkflw/internal/job"
	"github.com/wrkflw/wrkflw/internal/progress"
	"github.com/wrkflw/wrkflw/internal/scheduler"
	"github.com/wrkflw/wrkflw/internal/step"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

// Caller runs reusable-workflow jobs (`uses: <ref>`) on behalf of the job
// executor. Base carries everything shared with ordinary jobs in the same
// run (runtime, action resolver, cleanup registry, reporter); Call fills in
// the per-callee workspace, inputs, and secrets.
type Caller struct {
	Cache   *cache.Store
	Base    job.Config
	Workers int
}

// Call resolves callerJob.Uses, loads the target workflow, and runs it
// through its own scheduler graph.
func (c *Caller) Call(ctx context.Context, callerJob *workflow.Job, workspaceDir string) (step.NeedResult, error) {
	reporter := c.Base.Reporter
	if reporter == nil {
		reporter = progress.NoOp{}
	}

	ref, err := ParseRef(callerJob.Uses)
	if err != nil {
		return fail(), err
	}

	wfPath, err := c.resolve(ctx, ref, workspaceDir)
	if err != nil {
		return fail(), err
	}

	wf, err := workflow.Load(wfPath)
	if err != nil {
		return fail(), fmt.Errorf("loading reusable workflow %s: %w", callerJob.Uses, err)
	}

	g, err := scheduler.BuildGraph(wf)
	if err != nil {
		return fail(), fmt.Errorf("building job graph for %s: %w", callerJob.Uses, err)
	}

	inputs := make(map[string]any, len(callerJob.With))
	for k, v := range callerJob.With {
		inputs[k] = v
	}

	secrets, warning := resolveSecrets(callerJob.Secrets)
	if warning != "" {
		reporter.OnError(fmt.Errorf("job %q: %s", callerJob.ID, warning))
	}

	cfg := c.Base
	cfg.WorkspaceDir = workspaceDir
	cfg.Inputs = inputs
	cfg.Secrets = secrets
	cfg.Git = gitctx.Detect(ctx, workspaceDir, wf.Name)

	runner := job.NewRunner(cfg, wf)
	results, err := scheduler.Run(ctx, g, scheduler.Options{Workers: c.Workers}, runner.RunFunc())
	if err != nil {
		return fail(), fmt.Errorf("running reusable workflow %s: %w", callerJob.Uses, err)
	}

	// The caller job succeeds iff every called job succeeded; a Skipped
	// called job (its own `if:` evaluated false) doesn't count against the
	// caller, only an actual Failure/Cancelled does.
	result := step.Success
	for _, res := range results {
		if res.Result == step.Failure || res.Result == step.Cancelled {
			result = step.Failure
			break
		}
	}
	// Called-workflow outputs are never propagated back to the caller.
	return step.NeedResult{Result: result, Outputs: map[string]string{}}, nil
}

func fail() step.NeedResult {
	return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}
}

// resolve returns the filesystem path to ref's workflow file, cloning a
// remote ref into the shared cache if needed.
func (c *Caller) resolve(ctx context.Context, ref Ref, workspaceDir string) (string, error) {
	if ref.Local {
		return filepath.Join(workspaceDir, ref.Path), nil
	}
	if c.Cache == nil {
		return "", fmt.Errorf("remote reusable workflow %s: no cache configured", ref.CacheKey())
	}
	dir, err := c.Cache.Ensure(ctx, ref.CacheKey(), func(dir string) error {
		return shallowClone(ctx, ref.Owner, ref.Repo, ref.Tag, dir)
	})
	if err != nil {
		return "", fmt.Errorf("fetching reusable workflow %s: %w", ref.CacheKey(), err)
	}
	return filepath.Join(dir, ref.SubPath), nil
}

// resolveSecrets maps a job's `secrets:` block into SECRET_<UPPER_SNAKE>-
// ready string values. `secrets: inherit` is explicitly unsupported: it's
// treated as an empty mapping with a warning rather than silently
// forwarding the caller's own secrets.
func resolveSecrets(raw any) (map[string]string, string) {
	out := map[string]string{}
	switch v := raw.(type) {
	case nil:
		return out, ""
	case string:
		if v == "inherit" {
			return out, "secrets: inherit is not supported; the called workflow receives no secrets"
		}
		return out, fmt.Sprintf("secrets: unrecognized string form %q; ignoring", v)
	case map[string]any:
		for k, val := range v {
			out[k] = fmt.Sprint(val)
		}
		return out, ""
	default:
		return out, "secrets: unrecognized form; ignoring"
	}
}
