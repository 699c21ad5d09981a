package action

import (
	"regexp"
	"testing"
)

func TestParseRefLocal(t *testing.T) {
	r, err := ParseRef("./.github/actions/build")
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if !r.Local || r.Path != "./.github/actions/build" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseRefRemoteWithSubpath(t *testing.T) {
	r, err := ParseRef("actions/aws/ec2@v3")
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if r.Owner != "actions" || r.Repo != "aws" || r.Path != "ec2" || r.Tag != "v3" {
		t.Fatalf("got %+v", r)
	}
	if r.CacheKey() != "actions/aws@v3" {
		t.Fatalf("CacheKey: got %q", r.CacheKey())
	}
}

func TestParseRefMissingRef(t *testing.T) {
	if _, err := ParseRef("actions/checkout"); err == nil {
		t.Fatal("expected an error for a missing @ref")
	}
}

func TestIsCheckout(t *testing.T) {
	r, err := ParseRef("actions/checkout@v4")
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if !r.IsCheckout() {
		t.Fatal("expected actions/checkout@v4 to be recognized as the checkout special case")
	}
}

func TestResolveInputsAppliesDefaults(t *testing.T) {
	m := &Manifest{Inputs: map[string]ActionIn{
		"greeting": {Default: "hello"},
		"name":     {Required: true},
	}}
	got := m.ResolveInputs(map[string]any{"name": "world"})
	if got["greeting"] != "hello" || got["name"] != "world" {
		t.Fatalf("got %+v", got)
	}
}

func TestSatisfiesNode(t *testing.T) {
	if !SatisfiesNode("node20", "v20.11.0") {
		t.Fatal("expected v20.11.0 to satisfy node20")
	}
	if SatisfiesNode("node20", "v18.2.0") {
		t.Fatal("expected v18.2.0 to not satisfy node20")
	}
}

func TestDockerImageTagDeterministic(t *testing.T) {
	ref := Ref{Owner: "actions", Repo: "setup-node", Tag: "v4"}
	if DockerImageTag(ref) != DockerImageTag(ref) {
		t.Fatal("expected deterministic tag")
	}
}

func TestDockerImageTagFormat(t *testing.T) {
	ref := Ref{Owner: "actions", Repo: "setup-node", Tag: "v4"}
	tag := DockerImageTag(ref)
	if !regexp.MustCompile(`^wrkflw-action-[0-9a-f]{8}$`).MatchString(tag) {
		t.Fatalf("expected wrkflw-action-<8-hex> form, got %q", tag)
	}
}

func TestDockerImageTagDiffersByRef(t *testing.T) {
	a := Ref{Owner: "actions", Repo: "setup-node", Tag: "v4"}
	b := Ref{Owner: "actions", Repo: "setup-node", Tag: "v3"}
	if DockerImageTag(a) == DockerImageTag(b) {
		t.Fatal("expected different refs to hash to different tags")
	}
}
