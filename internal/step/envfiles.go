package step

import (
	"bufio"
	"os"
	"strings"
)

// EnvFiles are the four per-step files bind-mounted into the job's
// container at a fixed path. All four are truncated at step start by
// NewEnvFiles.
type EnvFiles struct {
	Dir string

	OutputPath  string
	EnvPath     string
	PathPath    string
	SummaryPath string
}

// NewEnvFiles creates (truncating) the four files under a fresh directory.
func NewEnvFiles(dir string) (*EnvFiles, error) {
	f := &EnvFiles{
		Dir:         dir,
		OutputPath:  dir + "/GITHUB_OUTPUT",
		EnvPath:     dir + "/GITHUB_ENV",
		PathPath:    dir + "/GITHUB_PATH",
		SummaryPath: dir + "/GITHUB_STEP_SUMMARY",
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	for _, p := range []string{f.OutputPath, f.EnvPath, f.PathPath, f.SummaryPath} {
		if err := os.WriteFile(p, nil, 0o644); err != nil { //nolint:gosec // per-step private dir
			return nil, err
		}
	}
	return f, nil
}

// parseKeyValueFile reads a GITHUB_OUTPUT/GITHUB_ENV-shaped file: each
// non-empty line is either `key=value` or the start of a multiline block
// `key<<DELIM`, whose body runs until a line exactly equal to DELIM.
func parseKeyValueFile(path string) (map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is this step's own env-file
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if key, delim, ok := strings.Cut(line, "<<"); ok && delim != "" {
			var body []string
			for scanner.Scan() {
				if scanner.Text() == delim {
					break
				}
				body = append(body, scanner.Text())
			}
			out[key] = strings.Join(body, "\n")
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			out[key] = value
		}
	}
	return out, scanner.Err()
}

// parseLines reads a GITHUB_PATH-shaped file: one entry per non-empty line.
func parseLines(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is this step's own env-file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func readSummary(path string) string {
	data, err := os.ReadFile(path) //nolint:gosec // path is this step's own env-file
	if err != nil {
		return ""
	}
	return string(data)
}
