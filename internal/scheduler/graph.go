// Package scheduler builds a workflow's needs-DAG and drives jobs to
// completion in dependency order.
package scheduler

import (
	"fmt"
	"strings"

	"github.com/wrkflw/wrkflw/internal/workflow"
)

// NeedsCycle is returned by BuildGraph when a workflow's `needs:` edges
// form a cycle, naming the cycle for diagnostics.
type NeedsCycle struct {
	Cycle []string
}

func (e *NeedsCycle) Error() string {
	return fmt.Sprintf("needs cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a workflow's job DAG, ready for topological scheduling.
type Graph struct {
	Jobs  map[string]*workflow.Job
	needs map[string][]string
}

// BuildGraph validates wf.Jobs' `needs:` edges and rejects cycles.
func BuildGraph(wf *workflow.Workflow) (*Graph, error) {
	g := &Graph{Jobs: wf.Jobs, needs: map[string][]string{}}
	for id, job := range wf.Jobs {
		g.needs[id] = job.Needs
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, &NeedsCycle{Cycle: cycle}
	}
	return g, nil
}

// findCycle runs DFS with a recursion stack over the needs graph, returning
// the first cycle found as an ordered list of job ids, or nil if acyclic.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Jobs))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range g.needs[id] {
			switch color[dep] {
			case gray:
				idx := indexOf(stack, dep)
				cycle = append(append([]string{}, stack[idx:]...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for id := range g.Jobs {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// Ready returns every job id whose `needs:` are all present as keys in done,
// and which isn't itself already in done.
func (g *Graph) Ready(done map[string]string) []string {
	var ready []string
	for id := range g.Jobs {
		if _, finished := done[id]; finished {
			continue
		}
		allDone := true
		for _, dep := range g.needs[id] {
			if _, ok := done[dep]; !ok {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, id)
		}
	}
	return ready
}
