package action

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// shallowClone fetches owner/repo at ref into dir at depth 1, the minimum
// needed to read an action's manifest and source without a full history.
// Disables hooks explicitly and runs with an allowlisted environment.
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

// safeGitEnv allowlists the environment variables git needs, keeping the
// child process from inheriting secrets or ambient proxy/credential-helper
// configuration the caller's environment might carry.
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
