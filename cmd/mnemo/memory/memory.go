// Package memorycmder provides the memory command and its subcommands, which
// talk to a running mnemo server over HTTP.
package memorycmder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/client"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

// Environment fallbacks for the actor flags.
const (
	EnvAgentID  = "MNEMO_AGENT_ID"
	EnvTeamID   = "MNEMO_TEAM_ID"
	EnvRole     = "MNEMO_ROLE"
	EnvSystemID = "MNEMO_SYSTEM_ID"
)

type memoryCommander struct {
	apiTarget string
	agentID   string
	teamID    string
	role      string
	systemID  int

	scope     string
	namespace string
	jsonOut   bool

	bulkLimit int
}

const memoryLongDesc string = `Manage memory entries on a running mnemo server.

Every request is made as the actor named by --agent, --team and --role
(or MNEMO_AGENT_ID, MNEMO_TEAM_ID and MNEMO_ROLE). Scope defaults to the
agent's own memory; team and global scope need --namespace.

Examples:
  mnemo memory add "deploys happen on tuesdays" --tags ops
  mnemo memory search deploys
  mnemo memory list --scope team --namespace ops --role control
  mnemo memory import seed.yaml --scope global --namespace handbook --role intelligence`

const memoryShortDesc string = "Manage memory entries"

func NewMemoryCmd() *cobra.Command {
	cmder := &memoryCommander{}

	cmd := &cobra.Command{
		Use:   "memory",
		Short: memoryShortDesc,
		Long:  memoryLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(cmd, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget
			cmder.bulkLimit = int(cfg.Memory.BulkLimit)
			return nil
		},
	}

	defaults := config.NewDefaultConfig()
	systemID, _ := strconv.Atoi(os.Getenv(EnvSystemID))

	pf := cmd.PersistentFlags()
	pf.StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "mnemo API server URL")
	pf.StringVar(&cmder.agentID, "agent", os.Getenv(EnvAgentID), "Calling agent id")
	pf.StringVar(&cmder.teamID, "team", os.Getenv(EnvTeamID), "Calling agent's team")
	pf.StringVar(&cmder.role, "role", envOr(EnvRole, string(permission.RoleWorker)), "Calling agent's role (control, intelligence, policy, worker)")
	pf.IntVar(&cmder.systemID, "system-id", systemID, "Numeric id of the calling system")
	pf.StringVar(&cmder.scope, "scope", "", "Memory scope (agent, team, global)")
	pf.StringVar(&cmder.namespace, "namespace", "", "Namespace within the scope")
	pf.BoolVar(&cmder.jsonOut, "json", false, "Print raw JSON responses")

	cmd.AddCommand(newAddCmd(cmder))
	cmd.AddCommand(newGetCmd(cmder))
	cmd.AddCommand(newListCmd(cmder))
	cmd.AddCommand(newSearchCmd(cmder))
	cmd.AddCommand(newInjectCmd(cmder))
	cmd.AddCommand(newUpdateCmd(cmder))
	cmd.AddCommand(newDeleteCmd(cmder))
	cmd.AddCommand(newPromoteCmd(cmder))
	cmd.AddCommand(newPruneCmd(cmder))
	cmd.AddCommand(newRecordCmd(cmder))
	cmd.AddCommand(newImportCmd(cmder))
	cmd.AddCommand(newStatsCmd(cmder))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *memoryCommander) actor() permission.Actor {
	return permission.Actor{
		AgentID:  c.agentID,
		TeamID:   c.teamID,
		Role:     permission.ParseRole(c.role),
		SystemID: c.systemID,
	}
}

func (c *memoryCommander) client() (*client.Client, error) {
	return client.New(client.Config{Target: c.apiTarget, Actor: c.actor()})
}

// envelope starts a tool request addressed at the selected partition.
func (c *memoryCommander) envelope(action tool.Action, items ...tool.Item) tool.Request {
	return tool.Request{
		Action:    action,
		Scope:     c.scope,
		Namespace: c.namespace,
		Items:     items,
	}
}

// report prints a tool response and returns an error when any item failed.
func (c *memoryCommander) report(w io.Writer, resp *tool.Response) error {
	if c.jsonOut {
		if err := printJSON(w, resp); err != nil {
			return err
		}
	} else {
		if err := cliui.PrintEntries(w, resp.Items); err != nil {
			return err
		}
		if resp.NextCursor != nil {
			fmt.Fprintf(w, "  %s %s\n", cliui.DimStyle.Render("next cursor:"), *resp.NextCursor)
		}
		for _, e := range resp.Errors {
			fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, cliui.WarnStyle.Render(string(e.Code)), e.Message)
		}
	}

	if !resp.OK() {
		return fmt.Errorf("%d of the requested items failed", len(resp.Errors))
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCode reports a request-level failure code before returning it.
func printCode(w io.Writer, err error) error {
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, cliui.WarnStyle.Render(string(memory.CodeOf(err))))
	}
	return err
}
