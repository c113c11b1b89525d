package memorycmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/pkg/cliui"
)

const previewWidth = 72

type searchCommander struct {
	*memoryCommander

	tags   []string
	layer  string
	limit  int
	cursor string
	quiet  bool
}

func (c *searchCommander) request(args []string) api.SearchRequest {
	return api.SearchRequest{
		Scope:     c.scope,
		Namespace: c.namespace,
		Text:      strings.Join(args, " "),
		Tags:      c.tags,
		Layer:     c.layer,
		Limit:     c.limit,
		Cursor:    c.cursor,
	}
}

func (c *searchCommander) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&c.tags, "tags", "t", nil, "Only entries carrying all of these tags")
	cmd.Flags().StringVarP(&c.layer, "layer", "l", "", "Only entries in this layer")
	cmd.Flags().IntVarP(&c.limit, "limit", "n", 0, "Maximum results (server default when 0)")
	cmd.Flags().StringVar(&c.cursor, "cursor", "", "Cursor from the previous page")
}

func newSearchCmd(parent *memoryCommander) *cobra.Command {
	cmder := &searchCommander{memoryCommander: parent}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memory entries",
		Long: `Search memory entries by text, tags and layer.

Results are ranked by relevance. With no query every entry matching the
tag and layer filters is returned. Use --quiet to print only ids.

Examples:
  mnemo memory search "deploy schedule"
  mnemo memory search --tags ops --scope team --namespace ops
  mnemo memory search flaky tests --quiet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only entry ids, one per line")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, args []string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}

	resp, err := cl.Search(cmd.Context(), c.request(args))
	if err != nil {
		return printCode(cmd.ErrOrStderr(), err)
	}

	w := cmd.OutOrStdout()
	switch {
	case c.jsonOut:
		return printJSON(w, resp)
	case c.quiet:
		for _, e := range resp.Items {
			fmt.Fprintln(w, e.ID)
		}
		return nil
	default:
		printResults(w, resp)
		return nil
	}
}

func printResults(w io.Writer, resp *api.SearchResponse) {
	if len(resp.Items) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i, e := range resp.Items {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.KeyStyle.Render(e.ID),
			cliui.DimStyle.Render(fmt.Sprintf("%s:%s %s/%s", e.Scope, e.Namespace, e.Layer, e.Priority)),
		)
		fmt.Fprintf(w, "      %s\n", cliui.ValueStyle.Render(cliui.Preview(e.Content, previewWidth)))
	}

	if resp.NextCursor != nil {
		fmt.Fprintf(w, "\n  %s %s\n", cliui.DimStyle.Render("next cursor:"), *resp.NextCursor)
	}
}

func newInjectCmd(parent *memoryCommander) *cobra.Command {
	cmder := &searchCommander{memoryCommander: parent}

	cmd := &cobra.Command{
		Use:   "inject [query]",
		Short: "Print search results as prompt lines",
		Long: `Search memory and print the results formatted for a prompt, one
"[scope:namespace|id] content" line each, within the server's character budget.

Examples:
  mnemo memory inject "current task" >> prompt.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := cmder.client()
			if err != nil {
				return err
			}

			lines, err := cl.Inject(cmd.Context(), cmder.request(args))
			if err != nil {
				return printCode(cmd.ErrOrStderr(), err)
			}

			w := cmd.OutOrStdout()
			if cmder.jsonOut {
				return printJSON(w, api.InjectResponse{Lines: lines})
			}
			for _, line := range lines {
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmder.addFlags(cmd)

	return cmd
}
