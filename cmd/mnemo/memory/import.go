package memorycmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

type importCommander struct {
	*memoryCommander

	batch int
}

const importLongDesc string = `Bulk create memory entries from a YAML file.

The file is either a list of items or a mapping with an optional scope and
namespace plus an items list. --scope and --namespace override the file.
Items without a source are marked as imported. Items are sent in batches no
larger than the server's bulk limit.

Example file:
  scope: global
  namespace: handbook
  items:
    - content: "releases are cut from main"
      layer: long_term
      tags: [release]
      priority: high

Examples:
  mnemo memory import seed.yaml --role intelligence
  mnemo memory import notes.yaml --scope team --namespace ops --role control --batch 20`

func newImportCmd(parent *memoryCommander) *cobra.Command {
	cmder := &importCommander{memoryCommander: parent}

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk create entries from a YAML file",
		Long:  importLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&cmder.batch, "batch", 0, "Items per request (defaults to memory.bulk_limit)")

	return cmd
}

func (c *importCommander) run(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	file, err := tool.ParseImportFile(data)
	if err != nil {
		return err
	}

	scope, namespace := file.Scope, file.Namespace
	if c.scope != "" {
		scope = c.scope
	}
	if c.namespace != "" {
		namespace = c.namespace
	}

	size := c.batch
	if size <= 0 || (c.bulkLimit > 0 && size > c.bulkLimit) {
		size = c.bulkLimit
	}

	cl, err := c.client()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	batches := tool.Batches(file.Items, size)
	created := 0
	var itemErrs []tool.ErrorPayload
	for i, batch := range batches {
		var reqErr error
		send := func() error {
			resp, err := cl.Memory(cmd.Context(), tool.Request{
				Action:    tool.ActionCreate,
				Scope:     scope,
				Namespace: namespace,
				Items:     batch,
			})
			if err != nil {
				reqErr = err
				return err
			}
			created += len(resp.Items)
			itemErrs = append(itemErrs, resp.Errors...)
			if !resp.OK() {
				return fmt.Errorf("%d items failed", len(resp.Errors))
			}
			return nil
		}

		if c.jsonOut {
			_ = send()
		} else {
			_ = cliui.Step(w, fmt.Sprintf("Importing batch %d/%d", i+1, len(batches)), send)
		}
		if reqErr != nil {
			return printCode(cmd.ErrOrStderr(), reqErr)
		}
	}

	failed := len(itemErrs)
	if c.jsonOut {
		if err := printJSON(w, map[string]int{"created": created, "failed": failed}); err != nil {
			return err
		}
	} else {
		for _, e := range itemErrs {
			fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, cliui.WarnStyle.Render(string(e.Code)), e.Message)
		}
		fmt.Fprintf(w, "  %s Imported %s\n", cliui.SuccessMark, cliui.NameStyle.Render(fmt.Sprintf("%d entries", created)))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d imported items failed", failed, len(file.Items))
	}
	return nil
}
