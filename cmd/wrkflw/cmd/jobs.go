package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrkflw/wrkflw/internal/scheduler"
	"github.com/wrkflw/wrkflw/internal/workflow"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs <workflow-file>",
	Short: "List a workflow's jobs and their dependency graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	wf, err := workflow.Load(args[0])
	if err != nil {
		return fatalf("loading workflow: %w", err)
	}
	graph, err := scheduler.BuildGraph(wf)
	if err != nil {
		return fatalf("building job graph: %w", err)
	}

	for id, j := range graph.Jobs {
		label := id
		if j.Name != "" {
			label = fmt.Sprintf("%s (%s)", id, j.Name)
		}
		switch {
		case j.Uses != "":
			fmt.Printf("%s -> uses %s\n", label, j.Uses)
		case len(j.Needs) > 0:
			fmt.Printf("%s -> needs %v\n", label, j.Needs)
		default:
			fmt.Println(label)
		}
	}
	return nil
}
