package memorycmder

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/pkg/cliui"
)

func newPruneCmd(parent *memoryCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Evict expired and excess entries",
		Long: `Delete expired entries from a scope and namespace, then the lowest
priority, oldest entries beyond the server's per-namespace bound.

Examples:
  mnemo memory prune
  mnemo memory prune --scope team --namespace ops --role control`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := parent.client()
			if err != nil {
				return err
			}

			deleted, err := cl.Prune(cmd.Context(), api.PruneRequest{Scope: parent.scope, Namespace: parent.namespace})
			if err != nil {
				return printCode(cmd.ErrOrStderr(), err)
			}

			w := cmd.OutOrStdout()
			if parent.jsonOut {
				return printJSON(w, api.PruneResponse{Deleted: deleted})
			}
			fmt.Fprintf(w, "  %s Pruned %s\n", cliui.SuccessMark, cliui.NameStyle.Render(fmt.Sprintf("%d entries", len(deleted))))
			for _, id := range deleted {
				fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(id))
			}
			return nil
		},
	}

	return cmd
}

func newRecordCmd(parent *memoryCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record [file]",
		Short: "Record session log lines",
		Long: `Record log lines as one session entry. Lines are read from the file, or
from stdin when the file is omitted or "-". Blank lines are dropped and long
tokens that look like secrets are redacted by the server. Recording may
trigger a reflection into long-term memory.

Examples:
  tail -n 50 agent.log | mnemo memory record
  mnemo memory record session.log --scope team --namespace ops --role control`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening log: %w", err)
				}
				defer f.Close()
				in = f
			}

			lines, err := readLines(in)
			if err != nil {
				return err
			}

			cl, err := parent.client()
			if err != nil {
				return err
			}

			result, err := cl.Record(cmd.Context(), api.RecordRequest{
				Scope:     parent.scope,
				Namespace: parent.namespace,
				Lines:     lines,
			})
			if err != nil {
				return printCode(cmd.ErrOrStderr(), err)
			}

			w := cmd.OutOrStdout()
			if parent.jsonOut {
				return printJSON(w, result)
			}
			fmt.Fprintf(w, "  %s Recorded %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(result.Entry.ID))
			if result.Reflection != nil {
				fmt.Fprintf(w, "  %s Reflected into %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(result.Reflection.ID))
			}
			if len(result.Pruned) > 0 {
				fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("pruned %d entries", len(result.Pruned))))
			}
			return nil
		},
	}

	return cmd
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return lines, nil
}
