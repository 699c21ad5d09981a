package scheduler

import (
	"testing"

	"github.com/wrkflw/wrkflw/internal/workflow"
)

func wf(jobs map[string]*workflow.Job) *workflow.Workflow {
	for id, j := range jobs {
		j.ID = id
	}
	return &workflow.Workflow{Jobs: jobs}
}

func TestBuildGraphAcyclic(t *testing.T) {
	w := wf(map[string]*workflow.Job{
		"a": {},
		"b": {Needs: []string{"a"}},
		"c": {Needs: []string{"a", "b"}},
	})
	g, err := BuildGraph(w)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	ready := g.Ready(map[string]string{})
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only a ready, got %v", ready)
	}
}

func TestBuildGraphDetectsCycle(t *testing.T) {
	w := wf(map[string]*workflow.Job{
		"a": {Needs: []string{"b"}},
		"b": {Needs: []string{"a"}},
	})
	_, err := BuildGraph(w)
	if err == nil {
		t.Fatal("expected a NeedsCycle error")
	}
	if _, ok := err.(*NeedsCycle); !ok {
		t.Fatalf("expected *NeedsCycle, got %T", err)
	}
}

func TestReadyAdvancesAsDepsFinish(t *testing.T) {
	w := wf(map[string]*workflow.Job{
		"a": {},
		"b": {Needs: []string{"a"}},
	})
	g, err := BuildGraph(w)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if ready := g.Ready(map[string]string{"a": "success"}); len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected b ready once a finished, got %v", ready)
	}
}
