package memorycmder

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
)

func newStatsCmd(parent *memoryCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the server's operation counters",
		Long: `Show the operation counters and query totals the server has tallied since
it started.

Examples:
  mnemo memory stats
  mnemo memory stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := parent.client()
			if err != nil {
				return err
			}

			snap, err := cl.Metrics(cmd.Context())
			if err != nil {
				return printCode(cmd.ErrOrStderr(), err)
			}

			w := cmd.OutOrStdout()
			if parent.jsonOut {
				return printJSON(w, snap)
			}

			keys := make([]string, 0, len(snap.Operations))
			for k := range snap.Operations {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			for _, k := range keys {
				fmt.Fprintf(w, "  %s %d\n", cliui.KeyStyle.Render(k), snap.Operations[k])
			}
			fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d queries, %d results", snap.Queries, snap.Results)))
			return nil
		},
	}

	return cmd
}
