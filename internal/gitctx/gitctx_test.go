package gitctx

import "testing"

func TestRemoteSlugHTTPS(t *testing.T) {
	// exercises remoteSlug's URL parsing without shelling out to git.
	url := "https://github.com/wrkflw/wrkflw.git"
	if got := slugFromRemoteURL(url); got != "wrkflw/wrkflw" {
		t.Fatalf("got %q", got)
	}
}

func TestRunnerContextMapIsLinuxOnly(t *testing.T) {
	m := RunnerContextMap("/workspace")
	if m["os"] != "Linux" {
		t.Fatalf("expected Linux, got %v", m["os"])
	}
	if m["workspace"] != "/workspace" {
		t.Fatalf("got %v", m["workspace"])
	}
}

func TestInfoToContextMap(t *testing.T) {
	i := Info{Repository: "o/r", SHA: "abc", EventName: "workflow_dispatch", RunNumber: 1}
	m := i.ToContextMap()
	if m["repository"] != "o/r" || m["sha"] != "abc" || m["event_name"] != "workflow_dispatch" {
		t.Fatalf("got %+v", m)
	}
}
