package memorycmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/tool"
)

func newGetCmd(parent *memoryCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>...",
		Short: "Read memory entries by id",
		Long: `Read memory entries by id from the selected scope and namespace.

Examples:
  mnemo memory get 3f1c2a9e-0b7d-4f43-9a57-5d1e0c4b8a21
  mnemo memory get a b c --scope team --namespace ops`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]tool.Item, 0, len(args))
			for _, id := range args {
				items = append(items, tool.Item{ID: id})
			}

			cl, err := parent.client()
			if err != nil {
				return err
			}

			resp, err := cl.Memory(cmd.Context(), parent.envelope(tool.ActionRead, items...))
			if err != nil {
				return printCode(cmd.ErrOrStderr(), err)
			}
			return parent.report(cmd.OutOrStdout(), resp)
		},
	}

	return cmd
}

func newListCmd(parent *memoryCommander) *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memory entries page by page",
		Long: `List the entries of a scope and namespace in creation order.

Pass the printed next cursor back with --cursor to fetch the following page.
Agent scope only lists the caller's own entries.

Examples:
  mnemo memory list
  mnemo memory list --scope team --namespace ops --limit 50
  mnemo memory list --cursor offset:20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := parent.client()
			if err != nil {
				return err
			}

			req := parent.envelope(tool.ActionList)
			req.Limit = limit
			req.Cursor = cursor

			resp, err := cl.Memory(cmd.Context(), req)
			if err != nil {
				return printCode(cmd.ErrOrStderr(), err)
			}
			return parent.report(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size (server default when 0)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from the previous page")

	return cmd
}
