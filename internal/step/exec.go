package step

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrkflw/wrkflw/internal/action"
	"github.com/wrkflw/wrkflw/internal/expr"
	"github.com/wrkflw/wrkflw/internal/progress"
	"github.com/wrkflw/wrkflw/internal/runtime"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

// Error reports a step-level failure not captured by a non-zero exit code
// (an if: expression or substitution that failed to evaluate).
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("step %q: %v", e.Step, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Executor runs one step at a time against a job-combination's container
// (or host workspace, under Emulation).
type Executor struct {
	Runtime      runtime.Runtime
	Handle       *runtime.Handle
	Resolver     *action.Resolver
	WorkspaceDir string
	JobID        string
	Reporter     progress.Reporter
	Masker       *Masker
}

// NewExecutor builds an Executor for one job-combination's container.
func NewExecutor(rt runtime.Runtime, h *runtime.Handle, resolver *action.Resolver, workspaceDir, jobID string, reporter progress.Reporter, masker *Masker) *Executor {
	if reporter == nil {
		reporter = progress.NoOp{}
	}
	if masker == nil {
		masker = NewMasker()
	}
	return &Executor{Runtime: rt, Handle: h, Resolver: resolver, WorkspaceDir: workspaceDir, JobID: jobID, Reporter: reporter, Masker: masker}
}

// evalStepIf evaluates a step's if: condition. An empty if: carries GitHub's
// implicit `success()` default: the step runs only when nothing earlier in
// the combination has failed, matching the job-level default the scheduler
// applies to `needs:`. An explicit if: is evaluated as written, so
// always()/failure()/cancelled() can override that default.
func evalStepIf(raw string, ctx expr.Context, jobStatus string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return jobStatus != Failure && jobStatus != Cancelled, nil
	}
	return expr.EvalBool(raw, ctx)
}

// Run executes st against execCtx, mutating execCtx.Steps[st.ID] (if the
// step has an id) and execCtx.Env/PATH with anything the step published via
// GITHUB_ENV/GITHUB_PATH.
func (e *Executor) Run(ctx context.Context, st *workflow.Step, execCtx *Context, jobStatus string, stepIndex int) (Result, error) {
	name := st.Name
	if name == "" {
		name = stepLabel(st)
	}

	ok, err := evalStepIf(st.If, execCtx.ExprContext(jobStatus), jobStatus)
	if err != nil {
		return Result{}, &Error{Step: name, Err: fmt.Errorf("evaluating if: %w", err)}
	}
	if !ok {
		res := Result{Outcome: Skipped, Conclusion: Skipped, Outputs: map[string]string{}}
		e.record(st, execCtx, res)
		return res, nil
	}

	e.Reporter.OnStepStart(e.JobID, name)
	start := time.Now()

	envFilesDir := filepath.Join(e.WorkspaceDir, ".wrkflw", "steps", fmt.Sprintf("%d", stepIndex))
	files, err := NewEnvFiles(envFilesDir)
	if err != nil {
		return Result{}, fmt.Errorf("step %q: preparing environment files: %w", name, err)
	}

	env, err := e.composeEnv(st, execCtx, files)
	if err != nil {
		return Result{}, fmt.Errorf("step %q: composing environment: %w", name, err)
	}

	workDir := e.WorkspaceDir
	if st.WorkingDirectory != "" {
		wd, err := expr.SubstituteString(st.WorkingDirectory, execCtx.ExprContext(jobStatus))
		if err != nil {
			return Result{}, fmt.Errorf("step %q: working-directory: %w", name, err)
		}
		workDir = wd
	}

	exitCode, actionOutputs, err := e.dispatch(ctx, st, execCtx, jobStatus, env, workDir, name)
	if err != nil {
		return Result{}, err
	}

	outcome := Success
	if exitCode != 0 {
		outcome = Failure
	}
	conclusion := outcome
	if st.ContinueOnError {
		conclusion = Success
	}

	res := Result{Outcome: outcome, Conclusion: conclusion}
	res.Outputs, err = parseKeyValueFile(files.OutputPath)
	if err != nil {
		return Result{}, fmt.Errorf("step %q: parsing GITHUB_OUTPUT: %w", name, err)
	}
	for k, v := range actionOutputs {
		res.Outputs[k] = v
	}
	res.Env, err = parseKeyValueFile(files.EnvPath)
	if err != nil {
		return Result{}, fmt.Errorf("step %q: parsing GITHUB_ENV: %w", name, err)
	}
	res.Path, err = parseLines(files.PathPath)
	if err != nil {
		return Result{}, fmt.Errorf("step %q: parsing GITHUB_PATH: %w", name, err)
	}
	res.Summary = readSummary(files.SummaryPath)

	for k, v := range res.Env {
		execCtx.Env[k] = v
	}
	if len(res.Path) > 0 {
		existing := execCtx.Env["PATH"]
		execCtx.Env["PATH"] = strings.Join(append(res.Path, existing), string(os.PathListSeparator))
	}

	e.record(st, execCtx, res)
	e.Reporter.OnStepComplete(e.JobID, name, res.Outcome, time.Since(start))
	return res, nil
}

// record publishes the step's outputs/conclusion/outcome under
// steps.<id>.* so later if:/env/with: expressions in the same combination
// can see them. Steps without an id aren't addressable and are dropped.
func (e *Executor) record(st *workflow.Step, execCtx *Context, res Result) {
	if st.ID == "" {
		return
	}
	if res.Outputs == nil {
		res.Outputs = map[string]string{}
	}
	execCtx.Steps[st.ID] = res
}

// composeEnv layers workflow/job/matrix env (already folded into
// execCtx.Env by the job executor) with step env, then runtime-injected
// GITHUB_*/RUNNER_*/env-file path variables.
func (e *Executor) composeEnv(st *workflow.Step, execCtx *Context, files *EnvFiles) (map[string]string, error) {
	env := make(map[string]string, len(execCtx.Env)+len(st.Env)+16)
	for k, v := range execCtx.Env {
		env[k] = v
	}
	exprCtx := execCtx.ExprContext("")
	for k, v := range st.Env {
		sub, err := expr.SubstituteString(v, exprCtx)
		if err != nil {
			return nil, err
		}
		env[k] = sub
	}
	for k, v := range execCtx.Secrets {
		env["SECRET_"+toUpperSnake(k)] = v
	}
	for k, v := range flatten(execCtx.Inputs) {
		env["INPUT_"+toUpperSnake(k)] = v
	}
	for k, v := range flatten(execCtx.GitHub) {
		env["GITHUB_"+toUpperSnake(k)] = v
	}
	for k, v := range flatten(execCtx.Runner) {
		env["RUNNER_"+toUpperSnake(k)] = v
	}
	env["GITHUB_OUTPUT"] = files.OutputPath
	env["GITHUB_ENV"] = files.EnvPath
	env["GITHUB_PATH"] = files.PathPath
	env["GITHUB_STEP_SUMMARY"] = files.SummaryPath
	return env, nil
}

func flatten(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func toUpperSnake(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

func stepLabel(st *workflow.Step) string {
	if st.Run != "" {
		if len(st.Run) > 40 {
			return "run: " + st.Run[:40] + "..."
		}
		return "run: " + st.Run
	}
	return "uses: " + st.Uses
}

// dispatch runs a run: script or a uses: action and returns its exit code
// plus any outputs published outside the GITHUB_OUTPUT file: a composite
// action's declared outputs, or the deprecated ::set-output:: command.
func (e *Executor) dispatch(ctx context.Context, st *workflow.Step, execCtx *Context, jobStatus string, env map[string]string, workDir, name string) (int, map[string]string, error) {
	out := e.outputWriter(name)

	var code int
	var outputs map[string]string
	var err error
	if st.Run != "" {
		code, err = e.runScript(ctx, st, execCtx, jobStatus, env, workDir, out)
	} else {
		code, outputs, err = e.runUses(ctx, st, execCtx, jobStatus, env, workDir, out, name)
	}
	if err != nil {
		return code, outputs, err
	}
	if len(out.sink.Outputs) > 0 {
		if outputs == nil {
			outputs = make(map[string]string, len(out.sink.Outputs))
		}
		for k, v := range out.sink.Outputs {
			outputs[k] = v
		}
	}
	return code, outputs, nil
}

func (e *Executor) runScript(ctx context.Context, st *workflow.Step, execCtx *Context, jobStatus string, env map[string]string, workDir string, out *lineWriter) (int, error) {
	script, err := expr.SubstituteString(st.Run, execCtx.ExprContext(jobStatus))
	if err != nil {
		return 0, fmt.Errorf("substituting run: %w", err)
	}

	shell := st.Shell
	if shell == "" {
		shell = "bash -e -o pipefail"
	}
	fields := strings.Fields(shell)

	scriptPath := filepath.Join(e.WorkspaceDir, ".wrkflw", "run-scripts", fmt.Sprintf("%d.sh", time.Now().UnixNano()%1_000_000))
	if err := os.MkdirAll(filepath.Dir(scriptPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil { //nolint:gosec // executable step script
		return 0, err
	}

	argv := append(append([]string{}, fields...), scriptPath)
	res, err := e.Runtime.Exec(ctx, e.Handle, argv, env, workDir, out)
	out.flush()
	if err != nil {
		return 0, err
	}
	return res.ExitCode, nil
}

func (e *Executor) runUses(ctx context.Context, st *workflow.Step, execCtx *Context, jobStatus string, env map[string]string, workDir string, out *lineWriter, name string) (int, map[string]string, error) {
	ref, err := action.ParseRef(st.Uses)
	if err != nil {
		return 0, nil, err
	}
	resolved, err := e.Resolver.Resolve(ctx, st.Uses, e.WorkspaceDir)
	if err != nil {
		return 0, nil, fmt.Errorf("resolving %s: %w", st.Uses, err)
	}

	with := make(map[string]string, len(st.With))
	exprCtx := execCtx.ExprContext(jobStatus)
	for k, v := range st.With {
		sub, serr := expr.SubstituteString(fmt.Sprint(v), exprCtx)
		if serr != nil {
			return 0, nil, serr
		}
		with[k] = sub
	}

	actionID := st.ID
	if actionID == "" {
		actionID = st.Uses
	}
	env["GITHUB_ACTION"] = actionID

	switch resolved.Kind {
	case action.KindCheckout:
		code, err := e.runCheckout(ctx)
		return code, nil, err
	case action.KindDocker:
		code, err := e.runDockerAction(ctx, ref, resolved, with, env, workDir, out)
		return code, nil, err
	case action.KindNode:
		code, err := e.runNodeAction(ctx, resolved, with, env, workDir, out)
		return code, nil, err
	case action.KindComposite:
		return e.runComposite(ctx, resolved, execCtx, jobStatus, with, name)
	default:
		return 0, nil, fmt.Errorf("%s: unsupported action kind %q", st.Uses, resolved.Kind)
	}
}

// runCheckout is the actions/checkout special case: the workspace already
// *is* the checked-out repository (the caller set it up before the job
// started), so there's nothing to run.
func (e *Executor) runCheckout(ctx context.Context) (int, error) {
	return 0, nil
}

// runDockerAction runs a container action in its own container on the
// runtime's default network; it is not attached to a job-specific network.
// Under Emulation it fails with runtime.ErrUnsupportedInEmulation.
func (e *Executor) runDockerAction(ctx context.Context, ref action.Ref, resolved *action.Resolved, with, env map[string]string, workDir string, out *lineWriter) (int, error) {
	if e.Runtime.Kind() == runtime.KindEmulation {
		return 0, runtime.ErrUnsupportedInEmulation
	}
	image := resolved.Runs.Image
	tag := image
	if image == "Dockerfile" || strings.HasSuffix(image, "Dockerfile") {
		tag = action.DockerImageTag(ref)
		if err := e.Runtime.BuildImage(ctx, resolved.Dir, tag); err != nil {
			return 0, err
		}
	} else if err := e.Runtime.EnsureImage(ctx, image); err != nil {
		return 0, err
	}

	actionEnv := make(map[string]string, len(env)+len(with))
	for k, v := range env {
		actionEnv[k] = v
	}
	for k, v := range resolved.ResolveInputs(toAnyMap(with)) {
		actionEnv["INPUT_"+toUpperSnake(k)] = v
	}

	argv := append([]string{}, resolved.Runs.Entrypoint)
	argv = append(argv, resolved.Runs.Args...)

	spec := runtime.ContainerSpec{
		Name:       fmt.Sprintf("%s-action-%d", e.Handle.ID, time.Now().UnixNano()%1_000_000),
		Image:      tag,
		Command:    []string{"sleep", "infinity"},
		Env:        actionEnv,
		WorkingDir: workDir,
		Binds: []runtime.Bind{
			{HostPath: e.WorkspaceDir, ContainerPath: workDir},
		},
	}
	h, err := e.Runtime.CreateContainer(ctx, spec)
	if err != nil {
		return 0, err
	}
	defer e.Runtime.Remove(ctx, h, true) //nolint:errcheck

	if err := e.Runtime.StartContainer(ctx, h); err != nil {
		return 0, err
	}
	res, err := e.Runtime.Exec(ctx, h, argv, actionEnv, workDir, out)
	out.flush()
	if err != nil {
		return 0, err
	}
	return res.ExitCode, nil
}

func (e *Executor) runNodeAction(ctx context.Context, resolved *action.Resolved, with, env map[string]string, workDir string, out *lineWriter) (int, error) {
	actionEnv := make(map[string]string, len(env)+len(with))
	for k, v := range env {
		actionEnv[k] = v
	}
	for k, v := range resolved.ResolveInputs(toAnyMap(with)) {
		actionEnv["INPUT_"+toUpperSnake(k)] = v
	}

	entry := filepath.Join(resolved.Dir, resolved.Runs.Main)
	argv := []string{"node", entry}
	res, err := e.Runtime.Exec(ctx, e.Handle, argv, actionEnv, workDir, out)
	out.flush()
	if err != nil {
		return 0, err
	}
	return res.ExitCode, nil
}

// runComposite inlines a composite action's own steps with a scoped
// sub-context: its steps.<id> namespace is private, but env/secrets/matrix
// are shared with the outer context. Once the inner steps finish, the
// manifest's declared outputs are evaluated against that private steps.*
// namespace and returned for the caller to publish as its own.
func (e *Executor) runComposite(ctx context.Context, resolved *action.Resolved, outer *Context, jobStatus string, with map[string]string, parentName string) (int, map[string]string, error) {
	inner := NewContext()
	inner.Env = outer.Env
	inner.Matrix = outer.Matrix
	inner.GitHub = outer.GitHub
	inner.Runner = outer.Runner
	inner.Secrets = outer.Secrets
	inner.WorkspaceDir = outer.WorkspaceDir
	inner.Inputs = toAnyMap(resolved.ResolveInputs(toAnyMap(with)))

	for i, cs := range resolved.Steps {
		st := &workflow.Step{
			ID: cs.ID, Name: cs.Name, If: cs.If, Env: cs.Env,
			ContinueOnError: cs.ContinueOnError, WorkingDirectory: cs.WorkingDirectory,
			Run: cs.Run, Shell: cs.Shell, Uses: cs.Uses, With: cs.With,
		}
		res, err := e.Run(ctx, st, inner, jobStatus, i)
		if err != nil {
			return 0, nil, fmt.Errorf("composite action %s, step %d: %w", parentName, i, err)
		}
		if res.Outcome == Failure && !cs.ContinueOnError {
			return 1, nil, nil
		}
	}

	outputs := make(map[string]string, len(resolved.Outputs))
	innerExprCtx := inner.ExprContext(jobStatus)
	for name, out := range resolved.Outputs {
		val, err := expr.SubstituteString(out.Value, innerExprCtx)
		if err != nil {
			return 0, nil, fmt.Errorf("composite action %s, output %s: %w", parentName, name, err)
		}
		outputs[name] = val
	}
	return 0, outputs, nil
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// lineWriter splits a raw output stream into masked, newline-terminated
// lines and forwards each to the reporter, intercepting workflow commands
// along the way.
type lineWriter struct {
	masker   *Masker
	sink     *CommandSink
	reporter progress.Reporter
	jobID    string
	name     string
}

func (e *Executor) outputWriter(name string) *lineWriter {
	return &lineWriter{masker: e.Masker, sink: NewCommandSink(e.Masker), reporter: e.Reporter, jobID: e.JobID, name: name}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range w.masker.Write(p) {
		w.handleLine(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if rest := w.masker.Flush(); rest != "" {
		w.handleLine(rest)
	}
}

func (w *lineWriter) handleLine(line string) {
	trimmed := strings.TrimRight(line, "\r\n")
	if cmd, ok := parseCommandLine(trimmed); ok && w.sink.Handle(cmd) {
		return
	}
	w.reporter.OnStepOutput(w.jobID, w.name, line)
}
