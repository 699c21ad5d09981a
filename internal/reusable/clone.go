package reusable

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// shallowClone fetches owner/repo at ref into dir at depth 1, enough to read
// the called workflow file without its full history. Mirrors the action
// resolver's clone of the same shape, since both cache remote GitHub refs
// under the same owner/repo@ref convention.
func shallowClone(ctx context.Context, owner, repo, ref, dir string) error {
	url := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "-c", "core.hooksPath=/dev/null",
		"clone", "--quiet", "--depth", "1", "--branch", ref, url, dir)
	cmd.Env = safeGitEnv()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("cloning %s/%s@%s: %w: %s", owner, repo, ref, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func safeGitEnv() []string {
	allow := []string{"PATH", "HOME", "USER", "TMPDIR", "TEMP", "TMP", "LANG", "LC_ALL", "SSH_AUTH_SOCK"}
	env := make([]string, 0, len(allow))
	for _, k := range allow {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}
