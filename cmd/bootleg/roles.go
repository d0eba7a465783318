package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the roles defined by the manifest",
	Args:  cobra.NoArgs,
	RunE:  runRoles,
}

func runRoles(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := newEngine(true)
	if err != nil {
		return err
	}
	defer cleanup()

	names := eng.Roles().Names()
	if len(names) == 0 {
		fmt.Println("No roles defined.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tHOST\tATTRIBUTES")
	for _, name := range names {
		ro, ok := eng.Roles().Get(name)
		if !ok {
			continue
		}
		for _, h := range ro.Hosts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, h.Name, formatAttrs(h.Attrs))
		}
		if len(ro.Hosts) == 0 {
			fmt.Fprintf(w, "%s\t-\t\n", name)
		}
	}
	return w.Flush()
}

func formatAttrs(attrs map[string]interface{}) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return strings.Join(pairs, " ")
}
