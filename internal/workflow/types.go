// Package workflow defines the typed model for a GitHub Actions workflow file
// and the normalization rules that turn the raw YAML shorthand forms into it.
package workflow

// Workflow is a named unit containing global env, triggers, and an ordered
// set of jobs keyed by stable identifier. Only workflow_dispatch is honored
// by the executor; other trigger kinds must still parse without error.
type Workflow struct {
	Name string `yaml:"name,omitempty"`
	On   On     `yaml:"-"`
	// RawOn preserves whatever form the file used (string, list, mapping) so
	// normalization can happen in normalizeOn rather than during unmarshal.
	RawOn       any               `yaml:"on,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Jobs        map[string]*Job   `yaml:"jobs"`
	Defaults    any               `yaml:"defaults,omitempty"`
	Permissions any               `yaml:"permissions,omitempty"`

	// Path is set by the loader; used for error reporting and cache keys.
	Path string `yaml:"-"`
}

// On is the normalized trigger set. WorkflowDispatch is true if the workflow
// declares (in any accepted shorthand) a workflow_dispatch trigger, with its
// declared inputs (if any) preserved for reusable-workflow input mapping.
type On struct {
	WorkflowDispatch   bool
	DispatchInputs     map[string]DispatchInput
	WorkflowCall       bool
	WorkflowCallInputs map[string]DispatchInput
	// Other records every other trigger name seen, so a workflow that uses
	// push/pull_request/etc. still parses and can still be run explicitly via
	// workflow_dispatch.
	Other []string
}

// DispatchInput models one workflow_dispatch/workflow_call input declaration.
type DispatchInput struct {
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	Type        string `yaml:"type,omitempty"`
}

// Container is the normalized job/service container shape. A bare image
// string form is normalized into this with only Image set.
type Container struct {
	Image   string            `yaml:"image"`
	Env     map[string]string `yaml:"env,omitempty"`
	Volumes []string          `yaml:"volumes,omitempty"`
	Ports   []string          `yaml:"ports,omitempty"`
	Options string            `yaml:"options,omitempty"`
}

// Matrix is the raw matrix configuration: dimension name to candidate value
// list, plus include/exclude/fail-fast/max-parallel. See package matrix for
// the expansion algorithm.
type Matrix struct {
	Dimensions map[string][]any `yaml:"-"`
	// DimensionOrder is Dimensions' keys in literal YAML declaration order,
	// recovered from the document AST since map iteration order isn't
	// declaration order. Nil if recovery failed; consumers fall back to a
	// deterministic sorted order in that case.
	DimensionOrder []string `yaml:"-"`
	Include        []map[string]any
	Exclude        []map[string]any
	FailFast       bool
	MaxParallel    int
}

// Strategy is the job-level `strategy:` block.
type Strategy struct {
	Matrix      *Matrix
	FailFast    bool
	MaxParallel int
}

// Job is one node of the workflow's needs-DAG. A job's body is either an
// ordered sequence of Steps, or a Uses reference to a reusable workflow —
// these two are mutually exclusive.
type Job struct {
	ID     string `yaml:"-"`
	Name   string `yaml:"name,omitempty"`
	RunsOn any    `yaml:"runs-on"`

	Steps []*Step `yaml:"steps,omitempty"`

	Env         map[string]string `yaml:"env,omitempty"`
	If          string            `yaml:"if,omitempty"`
	Needs       []string          `yaml:"-"`
	RawNeeds    any               `yaml:"needs,omitempty"`
	RawStrategy any               `yaml:"strategy,omitempty"`
	Strategy    *Strategy         `yaml:"-"`

	RawContainer any        `yaml:"container,omitempty"`
	Container    *Container `yaml:"-"`

	RawServices any                   `yaml:"services,omitempty"`
	Services    map[string]*Container `yaml:"-"`

	ContinueOnError any `yaml:"continue-on-error,omitempty"`

	// Reusable-workflow caller fields. Mutually exclusive with Steps.
	Uses    string         `yaml:"uses,omitempty"`
	With    map[string]any `yaml:"with,omitempty"`
	Secrets any            `yaml:"secrets,omitempty"`
}

// Step is one run or uses entry within a job. Both shapes carry the common
// fields below; exactly one of Run or Uses is set.
type Step struct {
	ID               string            `yaml:"id,omitempty"`
	Name             string            `yaml:"name,omitempty"`
	If               string            `yaml:"if,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`
	ContinueOnError  bool              `yaml:"continue-on-error,omitempty"`
	WorkingDirectory string            `yaml:"working-directory,omitempty"`

	Run   string `yaml:"run,omitempty"`
	Shell string `yaml:"shell,omitempty"`

	Uses string         `yaml:"uses,omitempty"`
	With map[string]any `yaml:"with,omitempty"`
}

// IsUses reports whether the step is an action reference rather than a
// shell script.
func (s *Step) IsUses() bool { return s.Uses != "" }
