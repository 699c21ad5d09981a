package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/wrkflw/wrkflw/internal/expr"
	"github.com/wrkflw/wrkflw/internal/step"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

// RunFunc executes one job to completion, given the aggregated results of
// its prerequisites, and returns this job's own result.
type RunFunc func(ctx context.Context, job *workflow.Job, needs map[string]step.NeedResult) (step.NeedResult, error)

// Options configures Run.
type Options struct {
	// Workers bounds how many jobs run concurrently across the whole
	// graph. Zero means the host's available parallelism.
	Workers int
}

// result is one job's completion, delivered over the scheduler's result
// channel regardless of whether it ran, was skipped, or errored.
type result struct {
	id  string
	res step.NeedResult
	err error
}

// Run drives g to completion, calling runJob for every job whose `needs:`
// are satisfied and whose `if:` (default an implicit success()) evaluates
// true, and marking the rest Skipped.
func Run(ctx context.Context, g *Graph, opts Options, runJob RunFunc) (map[string]step.NeedResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	done := map[string]step.NeedResult{}
	started := map[string]bool{}
	resultsCh := make(chan result, len(g.Jobs))

	p := pool.New().WithMaxGoroutines(workers)
	var mu sync.Mutex // guards `started`, read/written only from the dispatch loop goroutine; kept for clarity under future concurrent dispatch

	dispatch := func(id string) {
		job := g.Jobs[id]
		mu.Lock()
		started[id] = true
		mu.Unlock()

		needsSnapshot := make(map[string]step.NeedResult, len(job.Needs))
		for _, dep := range job.Needs {
			needsSnapshot[dep] = done[dep]
		}

		ok, err := shouldRun(job, needsSnapshot)
		if err != nil {
			resultsCh <- result{id: id, err: fmt.Errorf("job %q: evaluating if:: %w", id, err)}
			return
		}
		if !ok {
			resultsCh <- result{id: id, res: step.NeedResult{Result: step.Skipped, Outputs: map[string]string{}}}
			return
		}

		p.Go(func() {
			res, err := runJob(ctx, job, needsSnapshot)
			resultsCh <- result{id: id, res: res, err: err}
		})
	}

	for _, id := range g.Ready(resultStatuses(done)) {
		dispatch(id)
	}

	var firstErr error
	for len(done) < len(g.Jobs) {
		r := <-resultsCh
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		if r.res.Result == "" {
			r.res.Result = step.Failure
		}
		done[r.id] = r.res

		for _, id := range g.Ready(resultStatuses(done)) {
			if !started[id] {
				dispatch(id)
			}
		}
	}
	p.Wait()

	return done, firstErr
}

// resultStatuses projects a completed-jobs map down to the result-string
// shape Graph.Ready compares `needs:` edges against.
func resultStatuses(done map[string]step.NeedResult) map[string]string {
	statuses := make(map[string]string, len(done))
	for id, r := range done {
		statuses[id] = r.Result
	}
	return statuses
}

// shouldRun decides whether a job runs given its prerequisites' results.
// With no explicit if:, a job runs unless some prerequisite failed or was
// cancelled (a skipped prerequisite does not block it); an explicit if: is evaluated
// against a context exposing needs.<id>.result, so always()/failure() can
// override that default.
func shouldRun(job *workflow.Job, needs map[string]step.NeedResult) (bool, error) {
	anyFailed := false
	needsCtx := make(map[string]any, len(needs))
	for id, n := range needs {
		if n.Result == step.Failure || n.Result == step.Cancelled {
			anyFailed = true
		}
		outs := make(map[string]any, len(n.Outputs))
		for k, v := range n.Outputs {
			outs[k] = v
		}
		needsCtx[id] = map[string]any{"result": n.Result, "outputs": outs}
	}

	status := step.Success
	if anyFailed {
		status = step.Failure
	}

	if job.If == "" {
		// GitHub's implicit default is `if: success()`: no explicit
		// condition means a failed/cancelled prerequisite skips this job.
		return !anyFailed, nil
	}

	exprCtx := expr.Context{"needs": needsCtx, expr.FuncContextKey: status}
	return expr.EvalBool(job.If, exprCtx)
}
