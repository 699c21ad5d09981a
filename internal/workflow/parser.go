package workflow

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// maxWorkflowSizeBytes bounds the size of a workflow file we'll parse, as
// defense-in-depth against resource exhaustion from a malformed file.
const maxWorkflowSizeBytes = 1 * 1024 * 1024

// Load reads, parses, and normalizes a workflow file from disk. The returned
// Workflow is fully normalized: on: shapes collapsed, env values
// stringified, container/services shapes expanded, matrix parsed. Any
// problem is returned as *ParseError.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from workflow discovery, trusted by caller
	if err != nil {
		return nil, parseErr(path, 0, "reading workflow file: %v", err)
	}
	if err := validateWorkflowContent(path, data); err != nil {
		return nil, err
	}
	if err := checkDuplicateJobIDs(path, data); err != nil {
		return nil, err
	}

	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, parseErr(path, 0, "parsing workflow YAML: %v", err)
	}
	wf.Path = path

	if wf.Jobs == nil {
		return nil, parseErr(path, 0, "workflow declares no jobs")
	}
	for id, job := range wf.Jobs {
		if job == nil {
			return nil, parseErr(path, 0, "job %q has no body", id)
		}
		job.ID = id
	}

	if err := normalizeOn(&wf); err != nil {
		return nil, err
	}
	for id, job := range wf.Jobs {
		if err := normalizeJob(path, data, id, job); err != nil {
			return nil, err
		}
	}
	if err := validateNeeds(&wf); err != nil {
		return nil, err
	}

	return &wf, nil
}

// validateWorkflowContent rejects obviously malformed or hostile input
// before it reaches the YAML parser.
func validateWorkflowContent(path string, data []byte) error {
	if len(data) > maxWorkflowSizeBytes {
		return parseErr(path, 0, "workflow file exceeds maximum size of %d bytes", maxWorkflowSizeBytes)
	}
	if bytes.Contains(data, []byte{0x00}) {
		return parseErr(path, 0, "workflow file contains null bytes (binary content not allowed)")
	}
	controlCount := 0
	for _, b := range data {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			controlCount++
		}
	}
	if controlCount > 10 {
		return parseErr(path, 0, "workflow file contains excessive control characters (%d found)", controlCount)
	}
	return nil
}

// checkDuplicateJobIDs walks the raw document AST looking for duplicate
// mapping keys under jobs:. encoding/yaml-style unmarshalling into a Go map
// silently collapses duplicate keys, so this has to run against the AST.
func checkDuplicateJobIDs(path string, data []byte) error {
	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		return parseErr(path, 0, "parsing workflow YAML: %v", err)
	}
	for _, doc := range file.Docs {
		mapping, ok := doc.Body.(*ast.MappingNode)
		if !ok {
			continue
		}
		for _, top := range mapping.Values {
			key, ok := top.Key.(*ast.StringNode)
			if !ok || key.Value != "jobs" {
				continue
			}
			jobsMap, ok := top.Value.(*ast.MappingNode)
			if !ok {
				continue
			}
			seen := make(map[string]int, len(jobsMap.Values))
			for _, jv := range jobsMap.Values {
				jk, ok := jv.Key.(*ast.StringNode)
				if !ok {
					continue
				}
				line := jv.Key.GetToken().Position.Line
				if _, dup := seen[jk.Value]; dup {
					return parseErr(path, line, "duplicate job id %q", jk.Value)
				}
				seen[jk.Value] = line
			}
		}
	}
	return nil
}

// normalizeOn collapses the on: string/list/mapping shorthand forms into On.
// Unknown trigger names are tolerated so workflows that use other triggers
// still parse and remain runnable via workflow_dispatch.
func normalizeOn(wf *Workflow) error {
	switch v := wf.RawOn.(type) {
	case nil:
		return nil
	case string:
		applyTrigger(&wf.On, v, nil)
		return nil
	case []any:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return parseErr(wf.Path, 0, "on: list entries must be strings, got %T", item)
			}
			applyTrigger(&wf.On, name, nil)
		}
		return nil
	case map[string]any:
		for name, body := range v {
			applyTrigger(&wf.On, name, body)
		}
		return nil
	default:
		return parseErr(wf.Path, 0, "on: must be a string, list, or mapping, got %T", v)
	}
}

func applyTrigger(on *On, name string, body any) {
	switch name {
	case "workflow_dispatch":
		on.WorkflowDispatch = true
		on.DispatchInputs = parseDispatchInputs(body)
	case "workflow_call":
		on.WorkflowCall = true
		on.WorkflowCallInputs = parseDispatchInputs(body)
	default:
		on.Other = append(on.Other, name)
	}
}

func parseDispatchInputs(body any) map[string]DispatchInput {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m["inputs"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]DispatchInput, len(raw))
	for name, v := range raw {
		spec, ok := v.(map[string]any)
		if !ok {
			out[name] = DispatchInput{}
			continue
		}
		input := DispatchInput{}
		if d, ok := spec["description"].(string); ok {
			input.Description = d
		}
		if r, ok := spec["required"].(bool); ok {
			input.Required = r
		}
		if t, ok := spec["type"].(string); ok {
			input.Type = t
		}
		input.Default = spec["default"]
		out[name] = input
	}
	return out
}

// normalizeJob normalizes one job's container/services/needs/strategy
// shapes and validates its steps.
func normalizeJob(path string, data []byte, id string, job *Job) error {
	if len(job.Steps) > 0 && job.Uses != "" {
		return parseErr(path, 0, "job %q: steps and uses: are mutually exclusive", id)
	}
	if len(job.Steps) == 0 && job.Uses == "" {
		return parseErr(path, 0, "job %q: must declare steps or uses:", id)
	}

	for i, step := range job.Steps {
		if step.Run != "" && step.Uses != "" {
			return parseErr(path, 0, "job %q: step %d has both run: and uses:", id, i)
		}
		if step.Run == "" && step.Uses == "" {
			return parseErr(path, 0, "job %q: step %d has neither run: nor uses:", id, i)
		}
	}

	needs, err := normalizeNeeds(path, id, job.RawNeeds)
	if err != nil {
		return err
	}
	job.Needs = needs

	cont, err := normalizeContainer(path, job.RawContainer)
	if err != nil {
		return parseErr(path, 0, "job %q: %v", id, err)
	}
	job.Container = cont

	services, err := normalizeServices(path, job.RawServices)
	if err != nil {
		return parseErr(path, 0, "job %q: %v", id, err)
	}
	job.Services = services

	strat, err := normalizeStrategy(path, data, id, job.RawStrategy)
	if err != nil {
		return err
	}
	job.Strategy = strat

	return nil
}

func normalizeNeeds(path, id string, raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, parseErr(path, 0, "job %q: needs entries must be strings", id)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, parseErr(path, 0, "job %q: needs must be a string or list of strings", id)
	}
}

func normalizeContainer(path string, raw any) (*Container, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &Container{Image: v}, nil
	case map[string]any:
		return containerFromMap(v)
	default:
		return nil, parseErr(path, 0, "container: must be a string or mapping, got %T", v)
	}
}

func normalizeServices(path string, raw any) (map[string]*Container, error) {
	m, ok := raw.(map[string]any)
	if raw == nil {
		return nil, nil
	}
	if !ok {
		return nil, parseErr(path, 0, "services: must be a mapping")
	}
	out := make(map[string]*Container, len(m))
	for name, v := range m {
		cm, ok := v.(map[string]any)
		if !ok {
			return nil, parseErr(path, 0, "services.%s: must be a mapping", name)
		}
		c, err := containerFromMap(cm)
		if err != nil {
			return nil, fmt.Errorf("services.%s: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

func containerFromMap(m map[string]any) (*Container, error) {
	c := &Container{}
	if img, ok := m["image"].(string); ok {
		c.Image = img
	} else {
		return nil, fmt.Errorf("missing image")
	}
	if env, ok := m["env"].(map[string]any); ok {
		c.Env = stringifyEnv(env)
	}
	if vols, ok := m["volumes"].([]any); ok {
		for _, v := range vols {
			if s, ok := v.(string); ok {
				c.Volumes = append(c.Volumes, s)
			}
		}
	}
	if ports, ok := m["ports"].([]any); ok {
		for _, v := range ports {
			c.Ports = append(c.Ports, fmt.Sprint(v))
		}
	}
	if opts, ok := m["options"].(string); ok {
		c.Options = opts
	}
	return c, nil
}

// stringifyEnv coerces every env map value to its string form: env maps at
// workflow/job/step levels are strings, values stringified.
func stringifyEnv(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = stringifyScalar(v)
	}
	return out
}

func stringifyScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func normalizeStrategy(path string, data []byte, id string, raw any) (*Strategy, error) {
	m, ok := raw.(map[string]any)
	if raw == nil {
		return nil, nil
	}
	if !ok {
		return nil, parseErr(path, 0, "job %q: strategy must be a mapping", id)
	}
	strat := &Strategy{FailFast: true}
	if ff, ok := m["fail-fast"].(bool); ok {
		strat.FailFast = ff
	}
	if mp, ok := m["max-parallel"]; ok {
		n, err := toInt(mp)
		if err != nil {
			return nil, parseErr(path, 0, "job %q: strategy.max-parallel: %v", id, err)
		}
		strat.MaxParallel = n
	}
	if rawMatrix, ok := m["matrix"].(map[string]any); ok {
		mx, err := normalizeMatrix(path, id, rawMatrix)
		if err != nil {
			return nil, err
		}
		mx.FailFast = strat.FailFast
		mx.MaxParallel = strat.MaxParallel
		mx.DimensionOrder = matrixDimensionOrder(data, id)
		strat.Matrix = mx
	}
	return strat, nil
}

func normalizeMatrix(path, id string, m map[string]any) (*Matrix, error) {
	mx := &Matrix{Dimensions: map[string][]any{}, FailFast: true}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		switch k {
		case "include":
			inc, err := toMapList(v)
			if err != nil {
				return nil, parseErr(path, 0, "job %q: matrix.include: %v", id, err)
			}
			mx.Include = inc
		case "exclude":
			exc, err := toMapList(v)
			if err != nil {
				return nil, parseErr(path, 0, "job %q: matrix.exclude: %v", id, err)
			}
			mx.Exclude = exc
		default:
			list, ok := v.([]any)
			if !ok {
				return nil, parseErr(path, 0, "job %q: matrix.%s must be a list", id, k)
			}
			mx.Dimensions[k] = list
		}
	}
	return mx, nil
}

// matrixDimensionOrder recovers the literal YAML declaration order of
// jobs.<id>.strategy.matrix's dimension keys by walking the document AST,
// the same technique checkDuplicateJobIDs uses to see past the key-order
// loss of unmarshalling into a Go map. include/exclude aren't dimensions
// and are skipped. A malformed or unexpected shape yields a nil order, and
// callers fall back to sorted key order.
func matrixDimensionOrder(data []byte, jobID string) []string {
	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil
	}
	for _, doc := range file.Docs {
		mapping, ok := doc.Body.(*ast.MappingNode)
		if !ok {
			continue
		}
		jobsMap, ok := findKey(mapping, "jobs").(*ast.MappingNode)
		if !ok {
			continue
		}
		jobMap, ok := findKey(jobsMap, jobID).(*ast.MappingNode)
		if !ok {
			continue
		}
		stratMap, ok := findKey(jobMap, "strategy").(*ast.MappingNode)
		if !ok {
			continue
		}
		mm, ok := findKey(stratMap, "matrix").(*ast.MappingNode)
		if !ok {
			continue
		}
		var order []string
		for _, v := range mm.Values {
			k, ok := v.Key.(*ast.StringNode)
			if !ok {
				continue
			}
			if k.Value == "include" || k.Value == "exclude" {
				continue
			}
			order = append(order, k.Value)
		}
		return order
	}
	return nil
}

// findKey looks up key within a mapping node and returns its value node, or
// nil if key isn't a direct string key of mapping.
func findKey(mapping *ast.MappingNode, key string) ast.Node {
	for _, v := range mapping.Values {
		k, ok := v.Key.(*ast.StringNode)
		if !ok || k.Value != key {
			continue
		}
		return v.Value
	}
	return nil
}

func toMapList(v any) ([]map[string]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list")
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entries must be mappings")
		}
		out = append(out, m)
	}
	return out, nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

// validateNeeds confirms every job.Needs entry resolves to a declared job.
// Cycle detection is the scheduler's job, since it requires the full
// graph-walk the scheduler already does when ordering jobs; this pass only
// catches dangling references at load time.
func validateNeeds(wf *Workflow) error {
	for id, job := range wf.Jobs {
		for _, dep := range job.Needs {
			if _, ok := wf.Jobs[dep]; !ok {
				return parseErr(wf.Path, 0, "job %q: needs unknown job %q", id, dep)
			}
		}
	}
	return nil
}

// DiscoverWorkflows finds all .yml/.yaml workflow files in dir, skipping
// symlinks and anything outside dir.
func DiscoverWorkflows(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading workflows directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Type()&os.ModeSymlink != 0 {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".yml") && !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		out = append(out, dir+string(os.PathSeparator)+e.Name())
	}
	sort.Strings(out)
	return out, nil
}
