package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spinlock99/bootleg/internal/dispatch"
	"github.com/spinlock99/bootleg/internal/role"
)

var execCmd = &cobra.Command{
	Use:   "exec [role] [command...]",
	Short: "Run ad-hoc commands against a role",
	Long:  `Run one or more shell commands against every host of a role. Multiple commands run in lock-step: every host finishes a command before any host starts the next. The role argument accepts an inline filter, e.g. "web[primary=true]".`,
	Args:  cobra.MinimumNArgs(2),
	RunE:  runExec,
}

var (
	execDir     string
	execFilters []string
)

func init() {
	execCmd.Flags().StringVar(&execDir, "dir", "", "Working directory (relative paths resolve against the role workspace)")
	execCmd.Flags().StringArrayVar(&execFilters, "filter", nil, "Attribute filter key=value (repeatable)")
}

func runExec(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	spec, err := role.ParseSpec(args[0])
	if err != nil {
		return err
	}
	filter, err := parseFilters(execFilters)
	if err != nil {
		return err
	}

	if hist := eng.History(); hist != nil {
		run, herr := hist.BeginRun("exec")
		if herr == nil {
			defer func() { hist.FinishRun(run.ID, err) }()
		}
	}

	_, err = eng.Remote(cmd.Context(), spec, dispatch.Options{Dir: execDir, Filter: filter}, args[1:]...)
	return err
}

func parseFilters(pairs []string) (role.Attributes, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := role.Attributes{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed filter %q: want key=value", p)
		}
		attrs[k] = v
	}
	return attrs, nil
}
