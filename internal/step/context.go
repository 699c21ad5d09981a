// Package step implements the GitHub Actions step protocol: if: evaluation,
// environment-file handoff, workflow-command interception, and
// outcome/conclusion accounting for one step within a job-combination.
package step

import "github.com/wrkflw/wrkflw/internal/expr"

// Outcome/Conclusion values.
const (
	Success   = "success"
	Failure   = "failure"
	Cancelled = "cancelled"
	Skipped   = "skipped"
)

// Result is one step's final record.
type Result struct {
	Outputs    map[string]string
	Env        map[string]string // GITHUB_ENV merges to carry into later steps
	Path       []string          // GITHUB_PATH prepends to carry into later steps
	Summary    string
	Outcome    string
	Conclusion string
}

// NeedResult is one prerequisite job's contribution to `needs.<id>`.
type NeedResult struct {
	Result  string
	Outputs map[string]string
}

// Context is the per-job, per-matrix-combination execution context threaded
// through every step.
type Context struct {
	Env     map[string]string
	Matrix  map[string]any
	GitHub  map[string]any
	Runner  map[string]any
	Steps   map[string]Result
	Needs   map[string]NeedResult
	Inputs  map[string]any
	Secrets map[string]string

	// WorkspaceDir is where hashFiles() globs, per expr.HashFilesRoot.
	WorkspaceDir string
}

// NewContext builds an empty Context with all maps initialized, so callers
// never need a nil check before assigning into it.
func NewContext() *Context {
	return &Context{
		Env:     map[string]string{},
		Matrix:  map[string]any{},
		GitHub:  map[string]any{},
		Runner:  map[string]any{},
		Steps:   map[string]Result{},
		Needs:   map[string]NeedResult{},
		Inputs:  map[string]any{},
		Secrets: map[string]string{},
	}
}

// ExprContext projects Context into the flat map expr.Context expects,
// exposing each step's record as outputs/conclusion/outcome plus the
// job/combination's running status for success()/failure()/cancelled().
func (c *Context) ExprContext(status string) expr.Context {
	steps := make(map[string]any, len(c.Steps))
	for id, r := range c.Steps {
		outs := make(map[string]any, len(r.Outputs))
		for k, v := range r.Outputs {
			outs[k] = v
		}
		steps[id] = map[string]any{
			"outputs":    outs,
			"conclusion": r.Conclusion,
			"outcome":    r.Outcome,
		}
	}
	needs := make(map[string]any, len(c.Needs))
	for id, n := range c.Needs {
		outs := make(map[string]any, len(n.Outputs))
		for k, v := range n.Outputs {
			outs[k] = v
		}
		needs[id] = map[string]any{"result": n.Result, "outputs": outs}
	}
	env := make(map[string]any, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	secrets := make(map[string]any, len(c.Secrets))
	for k, v := range c.Secrets {
		secrets[k] = v
	}
	return expr.Context{
		"env":               env,
		"matrix":            c.Matrix,
		"github":            c.GitHub,
		"runner":            c.Runner,
		"steps":             steps,
		"needs":             needs,
		"inputs":            c.Inputs,
		"secrets":           secrets,
		expr.FuncContextKey: status,
		expr.HashFilesRoot:  c.WorkspaceDir,
	}
}
