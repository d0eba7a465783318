package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent deploy runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the commands and transfers of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
	historyCmd.AddCommand(historyShowCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(false)
	if err != nil {
		return err
	}
	defer cleanup()

	hist := eng.History()
	if hist == nil {
		return errors.New("run history is disabled")
	}

	runs, err := hist.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tSTATUS\tSTARTED\tDURATION")
	for _, run := range runs {
		duration := "-"
		if run.EndedAt != nil {
			duration = run.EndedAt.Sub(run.StartedAt).Round(10 * time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.Task, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), duration)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(false)
	if err != nil {
		return err
	}
	defer cleanup()

	hist := eng.History()
	if hist == nil {
		return errors.New("run history is disabled")
	}

	run, err := hist.GetRun(args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("Task:    %s\n", run.Task)
	fmt.Printf("Status:  %s\n", run.Status)
	if run.Error != "" {
		fmt.Printf("Error:   %s\n", run.Error)
	}
	fmt.Printf("Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.EndedAt != nil {
		fmt.Printf("Ended:   %s\n", run.EndedAt.Format("2006-01-02 15:04:05"))
	}

	commands, err := hist.CommandsForRun(run.ID)
	if err != nil {
		return err
	}
	if len(commands) > 0 {
		fmt.Println("\nCommands:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tROLE\tHOST\tCOMMAND\tEXIT")
		for _, c := range commands {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", c.Seq, c.Role, c.Host, c.Command, c.ExitStatus)
		}
		w.Flush()
	}

	transfers, err := hist.TransfersForRun(run.ID)
	if err != nil {
		return err
	}
	if len(transfers) > 0 {
		fmt.Println("\nTransfers:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tHOST\tDIRECTION\tSOURCE\tDEST\tERROR")
		for _, tr := range transfers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", tr.Role, tr.Host, tr.Direction, tr.Source, tr.Dest, tr.Error)
		}
		w.Flush()
	}
	return nil
}
