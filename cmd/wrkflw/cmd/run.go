package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wrkflw/wrkflw/internal/action"
	"github.com/wrkflw/wrkflw/internal/cache"
	"github.com/wrkflw/wrkflw/internal/cleanup"
	"github.com/wrkflw/wrkflw/internal/cliui"
	"github.com/wrkflw/wrkflw/internal/cliutil"
	"github.com/wrkflw/wrkflw/internal/config"
	"github.com/wrkflw/wrkflw/internal/gitctx"
	"github.com/wrkflw/wrkflw/internal/job"
	"github.com/wrkflw/wrkflw/internal/reusable"
	"github.com/wrkflw/wrkflw/internal/runtime"
	"github.com/wrkflw/wrkflw/internal/scheduler"
	"github.com/wrkflw/wrkflw/internal/step"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

var (
	runWorkspace    string
	runRuntime      string
	runWorkers      int
	runSecretsFile  string
	runInputs       []string
	runJobFilter    string
	runDryRun       bool
	runPreserveFail bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Run a workflow file's jobs locally",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runWorkspace, "workspace", ".", "workspace directory bind-mounted into job containers")
	runCmd.Flags().StringVar(&runRuntime, "runtime", "", "container runtime: docker, podman, or emulation (default from config)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "max concurrent jobs (default from config, 0 = host parallelism)")
	runCmd.Flags().StringVar(&runSecretsFile, "secrets-file", "", "KEY=VALUE secrets file")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "workflow_dispatch input as key=value, repeatable")
	runCmd.Flags().StringVar(&runJobFilter, "job", "", "run only this job id and its dependencies")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "validate the job graph and print the execution order without running anything")
	runCmd.Flags().BoolVar(&runPreserveFail, "preserve-on-failure", false, "keep a failed job's container for inspection instead of removing it (default from config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cliutil.SetupSignalHandler(cmd.Context())

	cfg, err := config.Load()
	if err != nil {
		return fatalf("loading config: %w", err)
	}
	if runRuntime != "" {
		cfg.Runtime = runRuntime
	}
	if runWorkers != 0 {
		cfg.Workers = runWorkers
	}

	wfPath := args[0]
	wf, err := workflow.Load(wfPath)
	if err != nil {
		return fatalf("loading workflow: %w", err)
	}

	if runJobFilter != "" {
		if _, ok := wf.Jobs[runJobFilter]; !ok {
			return fatalf("job %q not found in %s", runJobFilter, wfPath)
		}
		wf.Jobs = closure(wf.Jobs, runJobFilter)
	}

	graph, err := scheduler.BuildGraph(wf)
	if err != nil {
		return fatalf("building job graph: %w", err)
	}

	if runDryRun {
		return printDryRun(wf, graph)
	}

	workspaceDir, err := filepath.Abs(runWorkspace)
	if err != nil {
		return fatalf("resolving workspace: %w", err)
	}

	rt, err := runtime.New(ctx, runtime.Kind(cfg.Runtime))
	var unavailable *runtime.UnavailableError
	if errors.As(err, &unavailable) {
		fmt.Fprintf(os.Stderr, "warning: %v; falling back to emulation\n", err)
		rt, err = runtime.New(ctx, runtime.KindEmulation)
	}
	if err != nil {
		return fatalf("initializing %s runtime: %w", cfg.Runtime, err)
	}

	cacheStore, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return fatalf("opening cache: %w", err)
	}

	secrets, err := cliutil.LoadSecrets(runSecretsFile)
	if err != nil {
		return err
	}

	inputs, err := parseInputs(runInputs)
	if err != nil {
		return err
	}

	git := gitctx.Detect(ctx, workspaceDir, wf.Name)
	reporter := cliui.NewTermReporter(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()))
	preserveOnFailure := cfg.PreserveOnFailure
	if cmd.Flags().Changed("preserve-on-failure") {
		preserveOnFailure = runPreserveFail
	}
	registry := cleanup.NewRegistry(preserveOnFailure)

	jobCfg := job.Config{
		Runtime:      rt,
		Resolver:     action.NewResolver(cacheStore),
		Cleanup:      registry,
		Reporter:     reporter,
		WorkspaceDir: workspaceDir,
		RunID:        uuid.NewString(),
		Secrets:      secrets,
		Git:          git,
		Inputs:       inputs,
	}

	runner := job.NewRunner(jobCfg, wf)
	caller := &reusable.Caller{Cache: cacheStore, Base: jobCfg, Workers: cfg.Workers}

	runFunc := func(ctx context.Context, j *workflow.Job, needs map[string]step.NeedResult) (step.NeedResult, error) {
		if j.Uses != "" {
			return caller.Call(ctx, j, workspaceDir)
		}
		return runner.Run(ctx, j, needs)
	}

	started := time.Now()
	reporter.OnWorkflowStart(wf.Name, len(graph.Jobs))

	results, runErr := scheduler.Run(ctx, graph, scheduler.Options{Workers: cfg.Workers}, runFunc)

	inspectCmds := registry.ReleaseAll(context.Background())
	for _, c := range inspectCmds {
		fmt.Fprintf(os.Stderr, "  %s %s\n", cliui.MutedStyle.Render("inspect:"), c)
	}

	success := runErr == nil && allSucceeded(results)
	reporter.OnWorkflowComplete(wf.Name, success, time.Since(started))

	if runErr != nil {
		return fatalf("running workflow: %w", runErr)
	}
	if !success {
		return fatalf("one or more jobs failed")
	}
	return nil
}

// closure returns jobID and every job it transitively needs, per --job.
func closure(jobs map[string]*workflow.Job, jobID string) map[string]*workflow.Job {
	kept := map[string]*workflow.Job{}
	var visit func(id string)
	visit = func(id string) {
		if _, ok := kept[id]; ok {
			return
		}
		j, ok := jobs[id]
		if !ok {
			return
		}
		kept[id] = j
		for _, dep := range j.Needs {
			visit(dep)
		}
	}
	visit(jobID)
	return kept
}

func allSucceeded(results map[string]step.NeedResult) bool {
	for _, res := range results {
		if res.Result == step.Failure || res.Result == step.Cancelled {
			return false
		}
	}
	return true
}

func parseInputs(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fatalf("invalid --input %q: expected key=value", kv)
		}
		inputs[k] = v
	}
	return inputs, nil
}

func printDryRun(wf *workflow.Workflow, graph *scheduler.Graph) error {
	fmt.Printf("%s (%d jobs)\n", wf.Name, len(graph.Jobs))
	done := map[string]string{}
	for len(done) < len(graph.Jobs) {
		ready := graph.Ready(done)
		if len(ready) == 0 {
			break
		}
		for _, id := range ready {
			fmt.Printf("  %s needs=%v\n", id, graph.Jobs[id].Needs)
			done[id] = step.Success
		}
	}
	return nil
}
