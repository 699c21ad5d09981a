// Package gitctx populates the github/runner halves of a job's execution
// context from the local checkout: repository, ref, and commit metadata
// read from git itself and exposed as GITHUB_* context values.
package gitctx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
)

// Info is the best-effort repository metadata exposed as `github.*` (and,
// flattened, as GITHUB_* env vars).
type Info struct {
	Repository string
	SHA        string
	Ref        string
	Actor      string
	Workflow   string
	RunNumber  int
	EventName  string
}

// Detect inspects repoRoot's git metadata. Any individual lookup that fails
// (not a repository, git absent, detached with no branch) is left at its
// zero value rather than failing the whole run.
func Detect(ctx context.Context, repoRoot, workflowName string) Info {
	info := Info{Workflow: workflowName, EventName: "workflow_dispatch", RunNumber: 1}
	info.SHA = runGit(ctx, repoRoot, "rev-parse", "HEAD")
	info.Ref = branchRef(ctx, repoRoot)
	info.Actor = runGit(ctx, repoRoot, "config", "user.name")
	if info.Actor == "" {
		info.Actor = os.Getenv("USER")
	}
	info.Repository = remoteSlug(ctx, repoRoot)
	return info
}

func branchRef(ctx context.Context, repoRoot string) string {
	branch := runGit(ctx, repoRoot, "symbolic-ref", "--short", "HEAD")
	if branch == "" {
		return ""
	}
	return "refs/heads/" + branch
}

// remoteSlug derives "owner/repo" from the origin remote URL, supporting
// both the https and ssh forms GitHub issues.
func remoteSlug(ctx context.Context, repoRoot string) string {
	return slugFromRemoteURL(runGit(ctx, repoRoot, "remote", "get-url", "origin"))
}

// slugFromRemoteURL is remoteSlug's parsing of an origin URL; "" when the
// URL isn't a GitHub remote.
func slugFromRemoteURL(url string) string {
	if url == "" {
		return ""
	}
	url = strings.TrimSuffix(url, ".git")
	if i := strings.Index(url, "github.com/"); i >= 0 {
		return url[i+len("github.com/"):]
	}
	if i := strings.Index(url, "github.com:"); i >= 0 {
		return url[i+len("github.com:"):]
	}
	return ""
}

func runGit(ctx context.Context, repoRoot string, args ...string) string {
	full := append([]string{"-c", "core.hooksPath=/dev/null", "-C", repoRoot}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Env = safeGitEnv()
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// safeGitEnv allowlists the variables git actually needs before shelling
// out to git against a possibly-untrusted checkout.
func safeGitEnv() []string {
	allow := []string{"PATH", "HOME", "USER", "LANG", "LC_ALL"}
	env := make([]string, 0, len(allow))
	for _, k := range allow {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// ToContextMap renders Info as the `github` context map.
func (i Info) ToContextMap() map[string]any {
	return map[string]any{
		"repository": i.Repository,
		"sha":        i.SHA,
		"ref":        i.Ref,
		"actor":      i.Actor,
		"workflow":   i.Workflow,
		"run_number": i.RunNumber,
		"event_name": i.EventName,
	}
}

// RunnerContextMap builds the `runner` context map. Linux-only.
func RunnerContextMap(workspace string) map[string]any {
	return map[string]any{
		"os":         "Linux",
		"arch":       goruntime.GOARCH,
		"temp":       filepath.Join(os.TempDir(), "wrkflw"),
		"tool_cache": filepath.Join(os.TempDir(), "wrkflw", "toolcache"),
		"workspace":  workspace,
	}
}

