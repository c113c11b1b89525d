package memorycmder

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

type addCommander struct {
	*memoryCommander

	id         string
	owner      string
	tags       []string
	priority   string
	layer      string
	source     string
	confidence float64
	expiresIn  time.Duration
}

const addLongDesc string = `Create a memory entry.

Agent scope defaults the layer to working; team and global scope need
--layer. The entry id is generated unless --id is given.

Examples:
  mnemo memory add "prefers short answers" --tags style
  mnemo memory add "oncall rotates mondays" --scope team --namespace ops --layer long_term --role control
  mnemo memory add "scratch note" --expires-in 2h`

func newAddCmd(parent *memoryCommander) *cobra.Command {
	cmder := &addCommander{memoryCommander: parent}

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Create a memory entry",
		Long:  addLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := tool.Item{
				ID:           cmder.id,
				OwnerAgentID: cmder.owner,
				Tags:         cmder.tags,
				Priority:     cmder.priority,
				Layer:        cmder.layer,
				Source:       cmder.source,
			}
			content := strings.Join(args, " ")
			item.Content = &content
			item.Confidence = &cmder.confidence
			if cmder.expiresIn > 0 {
				at := time.Now().UTC().Add(cmder.expiresIn)
				item.ExpiresAt = &at
			}

			return cmder.run(cmd, item)
		},
	}

	cmd.Flags().StringVar(&cmder.id, "id", "", "Entry id (generated when empty)")
	cmd.Flags().StringVar(&cmder.owner, "owner", "", "Owning agent (defaults to the caller)")
	cmd.Flags().StringSliceVarP(&cmder.tags, "tags", "t", nil, "Comma separated tags")
	cmd.Flags().StringVarP(&cmder.priority, "priority", "p", string(memory.PriorityMedium), "Priority (low, medium, high)")
	cmd.Flags().StringVarP(&cmder.layer, "layer", "l", "", "Layer (working, session, long_term, meta)")
	cmd.Flags().StringVar(&cmder.source, "source", "manual", "Source (reflection, manual, tool, import)")
	cmd.Flags().Float64Var(&cmder.confidence, "confidence", 1, "Confidence between 0 and 1")
	cmd.Flags().DurationVar(&cmder.expiresIn, "expires-in", 0, "Expire the entry after this duration")

	return cmd
}

func (c *addCommander) run(cmd *cobra.Command, item tool.Item) error {
	cl, err := c.client()
	if err != nil {
		return err
	}

	resp, err := cl.Memory(cmd.Context(), c.envelope(tool.ActionCreate, item))
	if err != nil {
		return printCode(cmd.ErrOrStderr(), err)
	}

	return c.report(cmd.OutOrStdout(), resp)
}
