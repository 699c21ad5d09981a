// Package job implements the per-job executor: matrix expansion,
// per-combination container lifecycle, bounded parallel execution of
// combinations, and status aggregation. It supplies the scheduler.RunFunc
// the job graph actually drives.
package job

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/wrkflw/wrkflw/internal/action"
	"github.com/wrkflw/wrkflw/internal/cleanup"
	"github.com/wrkflw/wrkflw/internal/expr"
	"github.com/wrkflw/wrkflw/internal/gitctx"
	"github.com/wrkflw/wrkflw/internal/matrix"
	"github.com/wrkflw/wrkflw/internal/progress"
	"github.com/wrkflw/wrkflw/internal/runtime"
	"github.com/wrkflw/wrkflw/internal/scheduler"
	"github.com/wrkflw/wrkflw/internal/step"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

// defaultRunnerImage is used for a job that declares no container:, matching
// the image nektos/act-style local runners default `ubuntu-*` labels to.
const defaultRunnerImage = "ghcr.io/catthehacker/ubuntu:act-latest"

// Config holds everything shared by every job of one workflow run.
type Config struct {
	Runtime      runtime.Runtime
	Resolver     *action.Resolver
	Cleanup      *cleanup.Registry
	Reporter     progress.Reporter
	WorkspaceDir string
	RunID        string
	Secrets      map[string]string
	Git          gitctx.Info

	// Inputs holds the values exposed to every step as `inputs.<k>` and
	// INPUT_<UPPER_SNAKE>: the caller job's `with:` values when this workflow
	// runs as a reusable-workflow callee, or the workflow_dispatch inputs
	// given to a top-level run.
	Inputs map[string]any
}

// Runner binds a Config to one workflow and exposes scheduler.RunFunc.
type Runner struct {
	cfg Config
	wf  *workflow.Workflow
}

// NewRunner builds a Runner for wf using cfg.
func NewRunner(cfg Config, wf *workflow.Workflow) *Runner {
	if cfg.Reporter == nil {
		cfg.Reporter = progress.NoOp{}
	}
	return &Runner{cfg: cfg, wf: wf}
}

// RunFunc returns the scheduler-facing callback bound to this runner.
func (r *Runner) RunFunc() scheduler.RunFunc { return r.Run }

// Run executes one job to completion: it expands the matrix, runs every
// combination (bounded by max-parallel, cancelled-on-fail-fast for
// not-yet-started combinations only), and aggregates the job's own result.
func (r *Runner) Run(ctx context.Context, j *workflow.Job, needs map[string]step.NeedResult) (step.NeedResult, error) {
	if j.Uses != "" {
		// A `uses:` job is a reusable-workflow call, not a step sequence;
		// package reusable's Caller handles these, composed with this Runner
		// by the CLI's run command (it can't live here without an import
		// cycle back onto this package).
		return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}},
			fmt.Errorf("job %q: reusable workflow jobs must be routed to the reusable-workflow caller, not job.Runner", j.ID)
	}

	start := time.Now()

	var mx *workflow.Matrix
	failFast := true
	maxParallel := 0
	if j.Strategy != nil {
		failFast = j.Strategy.FailFast
		maxParallel = j.Strategy.MaxParallel
		mx = j.Strategy.Matrix
	}

	combos, err := matrix.Expand(mx)
	if err != nil {
		r.cfg.Reporter.OnError(fmt.Errorf("job %q: %w", j.ID, err))
		r.cfg.Reporter.OnJobComplete(j.ID, step.Failure, time.Since(start))
		return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, err
	}

	weight := int64(len(combos))
	if maxParallel > 0 && int64(maxParallel) < weight {
		weight = int64(maxParallel)
	}
	if weight < 1 {
		weight = 1
	}
	sem := semaphore.NewWeighted(weight)

	dispatchCtx, stopDispatching := context.WithCancel(ctx)
	defer stopDispatching()

	var (
		mu      sync.Mutex
		anyFail bool
		wg      sync.WaitGroup
	)

	for i, binding := range combos {
		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			// fail-fast already tripped, or the caller cancelled: this
			// combination never starts and counts as not-successful.
			mu.Lock()
			anyFail = true
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(i int, binding matrix.Binding) {
			defer wg.Done()
			defer sem.Release(1)

			r.cfg.Reporter.OnJobStart(j.ID, i, len(combos))
			comboStart := time.Now()
			res, cerr := r.runCombination(ctx, j, binding, needs, i, len(combos))
			if cerr != nil {
				r.cfg.Reporter.OnError(fmt.Errorf("job %q combination %d: %w", j.ID, i, cerr))
			}
			r.cfg.Reporter.OnJobComplete(fmt.Sprintf("%s[%d/%d]", j.ID, i+1, len(combos)), res.Result, time.Since(comboStart))

			if res.Result != step.Success {
				mu.Lock()
				anyFail = true
				mu.Unlock()
				if failFast {
					stopDispatching()
				}
			}
		}(i, binding)
	}
	wg.Wait()

	result := step.Success
	if anyFail {
		result = step.Failure
	}
	r.cfg.Reporter.OnJobComplete(j.ID, result, time.Since(start))
	return step.NeedResult{Result: result, Outputs: map[string]string{}}, nil
}

// runCombination runs every step of one matrix combination against its own
// container, in order.
func (r *Runner) runCombination(ctx context.Context, j *workflow.Job, binding matrix.Binding, needs map[string]step.NeedResult, index, total int) (step.NeedResult, error) {
	combo := step.NewContext()
	combo.WorkspaceDir = r.cfg.WorkspaceDir
	combo.Secrets = r.cfg.Secrets
	combo.Needs = needs
	for k, v := range binding {
		combo.Matrix[k] = v
	}
	combo.GitHub = r.githubContext(j)
	combo.Runner = gitctx.RunnerContextMap(r.cfg.WorkspaceDir)
	for k, v := range r.cfg.Inputs {
		combo.Inputs[k] = v
	}

	env, err := r.composeJobEnv(j, combo.ExprContext(step.Success))
	if err != nil {
		return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, fmt.Errorf("composing job env: %w", err)
	}
	combo.Env = env

	handle, err := r.cfg.Runtime.CreateContainer(ctx, r.containerSpec(j))
	if err != nil {
		return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, fmt.Errorf("creating container: %w", err)
	}
	r.cfg.Cleanup.Track(j.ID, r.cfg.Runtime, handle)
	defer func() {
		if cmd, rerr := r.cfg.Cleanup.Release(context.Background(), handle.ID); rerr != nil {
			r.cfg.Reporter.OnError(rerr)
		} else if cmd != "" {
			r.cfg.Reporter.OnError(fmt.Errorf("job %q: %s", j.ID, cmd))
		}
	}()

	if err := r.cfg.Runtime.StartContainer(ctx, handle); err != nil {
		r.cfg.Cleanup.MarkFailed(handle.ID)
		return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, fmt.Errorf("starting container: %w", err)
	}

	services, serr := r.startServices(ctx, j)
	defer r.stopServices(context.Background(), services)
	if serr != nil {
		r.cfg.Cleanup.MarkFailed(handle.ID)
		return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, serr
	}

	masker := step.NewMasker()
	for _, v := range r.cfg.Secrets {
		masker.Add(v)
	}
	executor := step.NewExecutor(r.cfg.Runtime, handle, r.cfg.Resolver, r.cfg.WorkspaceDir, j.ID, r.cfg.Reporter, masker)

	status := step.Success
	failed := false
	for i, st := range j.Steps {
		res, rerr := executor.Run(ctx, st, combo, status, i)
		if rerr != nil {
			r.cfg.Reporter.OnError(rerr)
			failed = true
			status = step.Failure
			continue
		}
		if res.Outcome == step.Failure {
			failed = true
			status = step.Failure
		}
	}

	if failed {
		r.cfg.Cleanup.MarkFailed(handle.ID)
	}

	result := step.Success
	if failed {
		result = step.Failure
	}
	return step.NeedResult{Result: result, Outputs: map[string]string{}}, nil
}

// containerSpec builds the per-combination container spec: the job's own
// container: (or the default runner image) with the host workspace bound in
// at the same path.
func (r *Runner) containerSpec(j *workflow.Job) runtime.ContainerSpec {
	image := defaultRunnerImage
	env := map[string]string{}
	options := ""
	binds := []runtime.Bind{{HostPath: r.cfg.WorkspaceDir, ContainerPath: r.cfg.WorkspaceDir}}
	if j.Container != nil {
		image = j.Container.Image
		for k, v := range j.Container.Env {
			env[k] = v
		}
		options = j.Container.Options
		for _, v := range j.Container.Volumes {
			if b, ok := parseVolume(v); ok {
				binds = append(binds, b)
			}
		}
	}
	return runtime.ContainerSpec{
		Name:       containerName(j.ID),
		Image:      image,
		Command:    []string{"sleep", "infinity"},
		Env:        env,
		WorkingDir: r.cfg.WorkspaceDir,
		Options:    options,
		Binds:      binds,
	}
}

// parseVolume reads a docker-style "host:container[:ro]" volume spec. A bare
// path (no colon) is treated as an anonymous container-only volume and
// skipped, since wrkflw has no named-volume lifecycle to manage.
func parseVolume(v string) (runtime.Bind, bool) {
	parts := strings.Split(v, ":")
	if len(parts) < 2 {
		return runtime.Bind{}, false
	}
	b := runtime.Bind{HostPath: parts[0], ContainerPath: parts[1]}
	if len(parts) >= 3 && (parts[2] == "ro" || parts[2] == "Z" || parts[2] == "z") {
		b.ReadOnly = parts[2] == "ro"
	}
	return b, true
}

func containerName(jobID string) string {
	return fmt.Sprintf("wrkflw-%s-%s", jobID, uuid.New().String()[:8])
}

// startServices brings up every entry in job.services before any step
// runs. A failure (including ErrUnsupportedInEmulation) fails the whole
// combination rather than silently running without them.
func (r *Runner) startServices(ctx context.Context, j *workflow.Job) ([]*runtime.Handle, error) {
	var handles []*runtime.Handle
	names := make([]string, 0, len(j.Services))
	for name := range j.Services {
		names = append(names, name)
	}
	for _, name := range names {
		svc := j.Services[name]
		spec := runtime.ContainerSpec{
			Name:    containerName(j.ID + "-" + name),
			Image:   svc.Image,
			Env:     svc.Env,
			Options: svc.Options,
		}
		h, err := r.cfg.Runtime.ServiceStart(ctx, spec)
		if err != nil {
			return handles, fmt.Errorf("service %q: %w", name, err)
		}
		r.cfg.Cleanup.Track(j.ID, r.cfg.Runtime, h)
		handles = append(handles, h)
	}
	return handles, nil
}

func (r *Runner) stopServices(ctx context.Context, handles []*runtime.Handle) {
	for _, h := range handles {
		if err := r.cfg.Runtime.ServiceStop(ctx, h); err != nil {
			r.cfg.Reporter.OnError(fmt.Errorf("stopping service %s: %w", h.ID, err))
		}
		if _, err := r.cfg.Cleanup.Release(ctx, h.ID); err != nil {
			r.cfg.Reporter.OnError(err)
		}
	}
}

// composeJobEnv layers CI/GITHUB_ACTIONS, the workflow's global env, and the
// job's own env, each `${{ }}`-substituted against exprCtx.
func (r *Runner) composeJobEnv(j *workflow.Job, exprCtx expr.Context) (map[string]string, error) {
	env := map[string]string{
		"CI":             "true",
		"GITHUB_ACTIONS": "true",
	}
	layer := func(src map[string]string) error {
		for k, v := range src {
			sub, err := expr.SubstituteString(v, exprCtx)
			if err != nil {
				return fmt.Errorf("env %q: %w", k, err)
			}
			env[k] = sub
		}
		return nil
	}
	if r.wf != nil {
		if err := layer(r.wf.Env); err != nil {
			return nil, err
		}
	}
	if err := layer(j.Env); err != nil {
		return nil, err
	}
	return env, nil
}

// githubContext builds the `github` context for jobID's combinations,
// layering this run's static Git detection over job/run-specific fields.
func (r *Runner) githubContext(j *workflow.Job) map[string]any {
	base := r.cfg.Git.ToContextMap()
	base["job"] = j.ID
	base["run_id"] = r.cfg.RunID
	base["run_attempt"] = "1"
	base["workspace"] = r.cfg.WorkspaceDir
	base["repository_owner"] = repositoryOwner(r.cfg.Git.Repository)
	base["ref_name"] = refName(fmt.Sprint(base["ref"]))
	base["event_path"] = filepath.Join(r.cfg.WorkspaceDir, ".wrkflw", "event.json")
	return base
}

func repositoryOwner(repository string) string {
	owner, _, ok := strings.Cut(repository, "/")
	if !ok {
		return ""
	}
	return owner
}

func refName(ref string) string {
	return strings.TrimPrefix(strings.TrimPrefix(ref, "refs/heads/"), "refs/tags/")
}
