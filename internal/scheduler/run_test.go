package scheduler

import (
	"context"
	"testing"

	"github.com/wrkflw/wrkflw/internal/step"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

func TestRunPropagatesSkipToDependents(t *testing.T) {
	w := wf(map[string]*workflow.Job{
		"a": {},
		"b": {Needs: []string{"a"}},
	})
	g, err := BuildGraph(w)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	var ran []string
	done, err := Run(context.Background(), g, Options{Workers: 2}, func(ctx context.Context, job *workflow.Job, needs map[string]step.NeedResult) (step.NeedResult, error) {
		ran = append(ran, job.ID)
		if job.ID == "a" {
			return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, nil
		}
		return step.NeedResult{Result: step.Success, Outputs: map[string]string{}}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if done["a"].Result != step.Failure {
		t.Fatalf("expected a to fail, got %+v", done["a"])
	}
	if done["b"].Result != step.Skipped {
		t.Fatalf("expected b to be skipped after a failed, got %+v", done["b"])
	}
	if len(ran) != 1 {
		t.Fatalf("expected only a to actually run, got %v", ran)
	}
}

func TestRunAlwaysOverridesSkip(t *testing.T) {
	w := wf(map[string]*workflow.Job{
		"a": {},
		"b": {Needs: []string{"a"}, If: "${{ always() }}"},
	})
	g, err := BuildGraph(w)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	done, err := Run(context.Background(), g, Options{Workers: 2}, func(ctx context.Context, job *workflow.Job, needs map[string]step.NeedResult) (step.NeedResult, error) {
		if job.ID == "a" {
			return step.NeedResult{Result: step.Failure, Outputs: map[string]string{}}, nil
		}
		return step.NeedResult{Result: step.Success, Outputs: map[string]string{}}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if done["b"].Result != step.Success {
		t.Fatalf("expected b to run via always(), got %+v", done["b"])
	}
}

func TestRunIndependentJobsBothComplete(t *testing.T) {
	w := wf(map[string]*workflow.Job{
		"a": {},
		"b": {},
	})
	g, err := BuildGraph(w)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	done, err := Run(context.Background(), g, Options{Workers: 4}, func(ctx context.Context, job *workflow.Job, needs map[string]step.NeedResult) (step.NeedResult, error) {
		return step.NeedResult{Result: step.Success, Outputs: map[string]string{}}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if done["a"].Result != step.Success || done["b"].Result != step.Success {
		t.Fatalf("got %+v", done)
	}
}
