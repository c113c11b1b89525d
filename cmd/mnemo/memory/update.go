package memorycmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

const conflictLongDesc = `
When --if-match names an etag that is no longer current the server keeps the
stored entry and writes the change as a new conflict entry instead; the
command prints it and exits non-zero.`

func newUpdateCmd(parent *memoryCommander) *cobra.Command {
	var (
		content    string
		tags       []string
		priority   string
		layer      string
		confidence float64
		expiresIn  time.Duration
		ifMatch    string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a memory entry",
		Long: `Update fields of a memory entry. Only the flags given are changed.
` + conflictLongDesc + `

Examples:
  mnemo memory update 3f1c2a9e --content "deploys moved to wednesdays"
  mnemo memory update 3f1c2a9e --priority high --if-match 9a0c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := tool.Item{ID: args[0], IfMatch: ifMatch, Priority: priority, Layer: layer}
			flags := cmd.Flags()
			if flags.Changed("content") {
				item.Content = &content
			}
			if flags.Changed("tags") {
				item.Tags = tags
			}
			if flags.Changed("confidence") {
				item.Confidence = &confidence
			}
			if expiresIn > 0 {
				at := time.Now().UTC().Add(expiresIn)
				item.ExpiresAt = &at
			}

			return parent.single(cmd, tool.ActionUpdate, item)
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "New content")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "Replace the tags")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority (low, medium, high)")
	cmd.Flags().StringVarP(&layer, "layer", "l", "", "New layer (working, session, long_term, meta)")
	cmd.Flags().Float64Var(&confidence, "confidence", 1, "New confidence between 0 and 1")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Expire the entry after this duration")
	cmd.Flags().StringVar(&ifMatch, "if-match", "", "Etag the change is based on")

	return cmd
}

func newDeleteCmd(parent *memoryCommander) *cobra.Command {
	var ifMatch string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a memory entry",
		Long: `Delete a memory entry.
` + conflictLongDesc + `

Examples:
  mnemo memory delete 3f1c2a9e
  mnemo memory delete 3f1c2a9e --scope team --namespace ops --role control`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parent.single(cmd, tool.ActionDelete, tool.Item{ID: args[0], IfMatch: ifMatch})
		},
	}

	cmd.Flags().StringVar(&ifMatch, "if-match", "", "Etag the deletion is based on")

	return cmd
}

func newPromoteCmd(parent *memoryCommander) *cobra.Command {
	var (
		fromScope     string
		fromNamespace string
		toScope       string
	)

	cmd := &cobra.Command{
		Use:   "promote <id>",
		Short: "Copy a memory entry into a wider scope",
		Long: `Copy an entry from one scope into another, typically from an agent's
own memory into team or global memory. --namespace names the target
namespace. When the target already holds a different entry with the same id
a conflict entry is created there instead.

Examples:
  mnemo memory promote 3f1c2a9e --to team --namespace ops --role control
  mnemo memory promote 3f1c2a9e --from team --from-namespace ops --to global --namespace handbook --role intelligence`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := tool.Item{
				ID:              args[0],
				SourceScope:     fromScope,
				SourceNamespace: fromNamespace,
				TargetScope:     toScope,
			}
			return parent.single(cmd, tool.ActionPromote, item)
		},
	}

	cmd.Flags().StringVar(&fromScope, "from", "agent", "Source scope")
	cmd.Flags().StringVar(&fromNamespace, "from-namespace", "", "Source namespace (defaults to the caller for agent scope)")
	cmd.Flags().StringVar(&toScope, "to", "team", "Target scope")

	return cmd
}

// single sends a one-item request and reports it. A delete that succeeded
// has no entry to print.
func (c *memoryCommander) single(cmd *cobra.Command, action tool.Action, item tool.Item) error {
	cl, err := c.client()
	if err != nil {
		return err
	}

	resp, err := cl.Memory(cmd.Context(), c.envelope(action, item))
	if err != nil {
		return printCode(cmd.ErrOrStderr(), err)
	}

	if action == tool.ActionDelete && resp.OK() && !c.jsonOut {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(item.ID))
		return nil
	}
	return c.report(cmd.OutOrStdout(), resp)
}
