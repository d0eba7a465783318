package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run a task with its before/after hooks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	return eng.Invoke(cmd.Context(), args[0])
}
