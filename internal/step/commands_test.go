package step

import "testing"

func TestParseCommandLineBasic(t *testing.T) {
	c, ok := parseCommandLine("::warning file=main.go,line=10::something's off")
	if !ok {
		t.Fatal("expected a recognized command")
	}
	if c.Name != "warning" || c.Params["file"] != "main.go" || c.Params["line"] != "10" {
		t.Fatalf("got %+v", c)
	}
	if c.Value != "something's off" {
		t.Fatalf("value: got %q", c.Value)
	}
}

func TestParseCommandLineNotACommand(t *testing.T) {
	if _, ok := parseCommandLine("plain step output"); ok {
		t.Fatal("expected no match for ordinary output")
	}
}

func TestParseCommandLineEscaping(t *testing.T) {
	c, ok := parseCommandLine("::notice title=a%3Ab::line one%0Aline two")
	if !ok {
		t.Fatal("expected a recognized command")
	}
	if c.Params["title"] != "a:b" {
		t.Fatalf("title: got %q", c.Params["title"])
	}
	if c.Value != "line one\nline two" {
		t.Fatalf("value: got %q", c.Value)
	}
}

func TestCommandSinkAddMask(t *testing.T) {
	m := NewMasker()
	sink := NewCommandSink(m)
	cmd, _ := parseCommandLine("::add-mask::topsecret")
	if !sink.Handle(cmd) {
		t.Fatal("expected add-mask to be recognized")
	}
	lines := m.Write([]byte("value is topsecret\n"))
	if lines[0] != "value is ***\n" {
		t.Fatalf("got %q", lines[0])
	}
}

func TestCommandSinkSetOutput(t *testing.T) {
	m := NewMasker()
	sink := NewCommandSink(m)
	cmd, _ := parseCommandLine("::set-output name=greeting::hello")
	if !sink.Handle(cmd) {
		t.Fatal("expected set-output to be recognized")
	}
	if sink.Outputs["greeting"] != "hello" {
		t.Fatalf("got %+v", sink.Outputs)
	}
}

func TestCommandSinkStopCommandsSuspendsInterception(t *testing.T) {
	m := NewMasker()
	sink := NewCommandSink(m)
	stop, _ := parseCommandLine("::stop-commands::MY_TOKEN")
	sink.Handle(stop)

	unrelated, _ := parseCommandLine("::warning::should be inert")
	if !sink.Handle(unrelated) {
		t.Fatal("expected commands to be treated as inert (still handled) while suspended")
	}
	if len(sink.Annotations) != 0 {
		t.Fatalf("expected warning to be suppressed while stopped, got %+v", sink.Annotations)
	}

	resume, _ := parseCommandLine("::MY_TOKEN::")
	sink.Handle(resume)

	after, _ := parseCommandLine("::warning::now active")
	sink.Handle(after)
	if len(sink.Annotations) != 1 || sink.Annotations[0].Message != "now active" {
		t.Fatalf("expected one annotation after resuming, got %+v", sink.Annotations)
	}
}
