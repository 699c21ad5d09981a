package progress

import (
	"errors"
	"testing"
	"time"
)

func TestNoOpImplementsReporter(t *testing.T) {
	var r Reporter = NoOp{}
	r.OnWorkflowStart("ci", 1)
	r.OnJobStart("build", 0, 1)
	r.OnStepStart("build", "checkout")
	r.OnStepOutput("build", "checkout", "hello")
	r.OnStepComplete("build", "checkout", "success", time.Millisecond)
	r.OnJobComplete("build", "success", time.Millisecond)
	r.OnWorkflowComplete("ci", true, time.Millisecond)
	r.OnError(errors.New("boom"))
}
