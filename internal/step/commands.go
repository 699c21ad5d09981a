package step

import "strings"

// Command is one parsed workflow command, e.g. `::warning file=a.go::oops`.
type Command struct {
	Name   string
	Params map[string]string
	Value  string
}

// parseCommandLine recognizes the `::command key=val,...::value` wire
// format from a single line of step output. Lines that don't match the
// format are not commands.
func parseCommandLine(line string) (*Command, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "::") {
		return nil, false
	}
	rest := line[2:]
	end := strings.Index(rest, "::")
	if end < 0 {
		return nil, false
	}
	head, value := rest[:end], rest[end+2:]

	name := head
	var paramStr string
	if sp := strings.Index(head, " "); sp >= 0 {
		name, paramStr = head[:sp], head[sp+1:]
	}
	if name == "" {
		return nil, false
	}

	params := map[string]string{}
	if paramStr != "" {
		for _, pair := range strings.Split(paramStr, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				continue
			}
			params[kv[0]] = unescapeProperty(kv[1])
		}
	}
	return &Command{Name: name, Params: params, Value: unescapeData(value)}, true
}

// Data escaping (the command's ::value part): %25 -> %, %0D -> \r, %0A -> \n.
func unescapeData(s string) string {
	r := strings.NewReplacer("%0A", "\n", "%0D", "\r", "%25", "%")
	return r.Replace(s)
}

// Property escaping (parameter values) additionally unescapes %3A -> :
// since parameters are themselves colon/comma-delimited.
func unescapeProperty(s string) string {
	r := strings.NewReplacer("%0A", "\n", "%0D", "\r", "%3A", ":", "%2C", ",", "%25", "%")
	return r.Replace(s)
}

// Annotation is a notice/warning/error raised by a step via a workflow
// command, attached to the step's record for the caller to surface.
type Annotation struct {
	Level string // "notice", "warning", "error", "debug"
	File  string
	Line  string
	Col   string
	Title string
	Message string
}

// CommandSink accumulates the side effects of workflow commands seen during
// one step's run: it does not itself touch the GITHUB_* environment files
// (those are read from disk after the process exits) but it does own
// everything communicated purely over stdout.
type CommandSink struct {
	Masker      *Masker
	Annotations []Annotation
	Summary     strings.Builder
	Outputs     map[string]string // populated by the deprecated ::set-output:: command
	stopToken   string            // non-empty while ::stop-commands::<token> is active
}

// NewCommandSink builds a sink that masks through m.
func NewCommandSink(m *Masker) *CommandSink {
	return &CommandSink{Masker: m, Outputs: map[string]string{}}
}

// Handle processes one parsed command. It returns false for lines that
// aren't a recognized command name, so the caller can still log the raw
// line; recognized-but-ignored commands (save-state, add-path, add-matcher,
// echo) still return true since they are workflow commands, just ones this
// runtime no-ops. set-output is
// deprecated in favor of GITHUB_OUTPUT but still honored here since some
// actions still emit it.
func (s *CommandSink) Handle(c *Command) bool {
	if s.stopToken != "" {
		if c.Name == s.stopToken {
			s.stopToken = ""
			return true
		}
		return true // interception suspended; commands are inert until the token recurs
	}
	switch c.Name {
	case "add-mask":
		s.Masker.Add(c.Value)
	case "stop-commands":
		s.stopToken = c.Value
	case "notice", "warning", "error", "debug":
		s.Annotations = append(s.Annotations, Annotation{
			Level: c.Name, File: c.Params["file"], Line: c.Params["line"],
			Col: c.Params["col"], Title: c.Params["title"], Message: c.Value,
		})
	case "group", "endgroup":
		// purely a log-grouping hint for the caller's renderer; nothing to track here
	case "set-output":
		s.Outputs[c.Params["name"]] = c.Value
	case "save-state", "add-path", "add-matcher", "echo":
		// dropped: PATH additions are read only from the GITHUB_PATH file,
		// step state is not kept, and problem matchers are not supported
	default:
		return false
	}
	return true
}
