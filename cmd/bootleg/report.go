package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	hostStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// consoleReporter prints per-host results as they are collected. It plugs
// into the dispatcher alongside the history store.
type consoleReporter struct{}

func (consoleReporter) RecordCommand(roleName, host, command string, exitStatus int, stdout, stderr string) error {
	prefix := hostStyle.Render(fmt.Sprintf("[%s/%s]", roleName, host))
	status := okStyle.Render("ok")
	if exitStatus != 0 {
		status = failStyle.Render(fmt.Sprintf("exit %d", exitStatus))
	}
	fmt.Printf("%s %s %s\n", prefix, command, status)
	printIndented(stdout)
	printIndented(stderr)
	return nil
}

func (consoleReporter) RecordTransfer(roleName, host, direction, source, dest string, terr error) error {
	prefix := hostStyle.Render(fmt.Sprintf("[%s/%s]", roleName, host))
	status := okStyle.Render("ok")
	if terr != nil {
		status = failStyle.Render(terr.Error())
	}
	fmt.Printf("%s %s %s -> %s %s\n", prefix, direction, source, dest, status)
	return nil
}

func printIndented(s string) {
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if line == "" {
			continue
		}
		fmt.Println(dimStyle.Render("  " + line))
	}
}
