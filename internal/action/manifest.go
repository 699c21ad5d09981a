package action

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// maxManifestSizeBytes is a defense-in-depth size bound like the workflow
// parser's, set lower (256 KiB against the parser's 1 MiB).
const maxManifestSizeBytes = 256 * 1024

// Manifest is action.yml/action.yaml's typed shape.
type Manifest struct {
	Name        string                `yaml:"name,omitempty"`
	Description string                `yaml:"description,omitempty"`
	Inputs      map[string]ActionIn   `yaml:"inputs,omitempty"`
	Outputs     map[string]ActionOut  `yaml:"outputs,omitempty"`
	Runs        Runs                  `yaml:"runs"`
}

// ActionIn is one declared input, used to seed defaults for undeclared
// `with:` keys before INPUT_* env vars are composed.
type ActionIn struct {
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
}

// ActionOut is one declared output (composite actions reference a step's
// output via `steps.<id>.outputs.<name>`; that expression isn't evaluated
// here, only recorded).
type ActionOut struct {
	Description string `yaml:"description,omitempty"`
	Value       string `yaml:"value,omitempty"`
}

// Runs is the manifest's execution recipe; only the fields relevant to the
// `using` kind actually present are populated.
type Runs struct {
	Using string `yaml:"using"`

	// docker
	Image          string   `yaml:"image,omitempty"`
	Args           []string `yaml:"args,omitempty"`
	Entrypoint     string   `yaml:"entrypoint,omitempty"`
	PreEntrypoint  string   `yaml:"pre-entrypoint,omitempty"`
	PostEntrypoint string   `yaml:"post-entrypoint,omitempty"`

	// node12/16/20
	Main string `yaml:"main,omitempty"`
	Pre  string `yaml:"pre,omitempty"`
	Post string `yaml:"post,omitempty"`

	// composite
	Steps []CompositeStep `yaml:"steps,omitempty"`
}

// CompositeStep mirrors workflow.Step's shape for a composite action's own
// steps; kept as a distinct type since composite steps can reference
// `inputs.*` but never `needs.*`.
type CompositeStep struct {
	ID               string            `yaml:"id,omitempty"`
	Name             string            `yaml:"name,omitempty"`
	If               string            `yaml:"if,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`
	ContinueOnError  bool              `yaml:"continue-on-error,omitempty"`
	WorkingDirectory string            `yaml:"working-directory,omitempty"`
	Shell            string            `yaml:"shell,omitempty"`

	Run  string         `yaml:"run,omitempty"`
	Uses string         `yaml:"uses,omitempty"`
	With map[string]any `yaml:"with,omitempty"`
}

// LoadManifest reads action.yml or action.yaml from dir.
func LoadManifest(dir string) (*Manifest, error) {
	for _, name := range []string{"action.yml", "action.yaml"} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > maxManifestSizeBytes {
			return nil, fmt.Errorf("%s exceeds %d bytes", path, maxManifestSizeBytes)
		}
		data, err := os.ReadFile(path) //nolint:gosec // path built from a resolved action directory
		if err != nil {
			return nil, err
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if m.Runs.Using == "" {
			return nil, fmt.Errorf("%s: runs.using is required", path)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("no action.yml or action.yaml found in %s", dir)
}

// ResolveInputs merges declared defaults with the step's `with:` overrides,
// per GitHub Actions' input-resolution rule: an input not supplied at the
// call site but declared with a default still gets that default.
func (m *Manifest) ResolveInputs(with map[string]any) map[string]string {
	out := make(map[string]string, len(m.Inputs))
	for name, decl := range m.Inputs {
		if decl.Default != nil {
			out[name] = fmt.Sprint(decl.Default)
		}
	}
	for name, v := range with {
		out[name] = fmt.Sprint(v)
	}
	return out
}
