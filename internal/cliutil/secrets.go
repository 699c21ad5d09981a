package cliutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const secretEnvPrefix = "WRKFLW_SECRET_"

// LoadSecrets builds the secrets map the job executor injects as
// SECRET_<UPPER_SNAKE> env vars and the `secrets` expression context,
// reading optional KEY=VALUE lines from path and layering
// WRKFLW_SECRET_<NAME> environment variables over them. The secrets-provider
// framework itself (credential stores, vaults) is an external concern this
// CLI only has to feed a flat map into.
func LoadSecrets(path string) (map[string]string, error) {
	secrets := map[string]string{}

	if path != "" {
		f, err := os.Open(path) //nolint:gosec // path is an explicit user-supplied flag
		if err != nil {
			return nil, fmt.Errorf("opening secrets file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			secrets[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading secrets file: %w", err)
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, secretEnvPrefix) {
			continue
		}
		secrets[strings.TrimPrefix(k, secretEnvPrefix)] = v
	}

	return secrets, nil
}
