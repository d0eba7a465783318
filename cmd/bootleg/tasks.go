package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spinlock99/bootleg/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks defined by the manifest",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	infos := eng.Tasks().Defined()
	if len(infos) == 0 {
		fmt.Println("No tasks defined.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tHOOKS\tORIGIN")
	for _, info := range infos {
		before := eng.Tasks().HookCount(info.Name, task.PositionBefore)
		after := eng.Tasks().HookCount(info.Name, task.PositionAfter)
		fmt.Fprintf(w, "%s\t%d before, %d after\t%s\n", info.Name, before, after, info.Origin)
	}
	return w.Flush()
}
