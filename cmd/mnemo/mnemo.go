// Package mnemocmder provides the root mnemo command.
package mnemocmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/mnemo/cmd/mnemo/config"
	initcmder "github.com/papercomputeco/mnemo/cmd/mnemo/init"
	memorycmder "github.com/papercomputeco/mnemo/cmd/mnemo/memory"
	servecmder "github.com/papercomputeco/mnemo/cmd/mnemo/serve"
	sessioncmder "github.com/papercomputeco/mnemo/cmd/mnemo/session"
	versioncmder "github.com/papercomputeco/mnemo/cmd/version"
)

const mnemoLongDesc string = `Mnemo is scoped, permissioned memory for your agents.

Run the server and talk to it using:
  mnemo serve              Run the API and MCP server
  mnemo memory <command>   Create, search and prune memory entries
  mnemo session follow     Record a session log file as it grows
  mnemo config <command>   Manage persistent configuration
  mnemo init               Create a local .mnemo/ directory`

const mnemoShortDesc string = "Mnemo - Agent Memory"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mnemo",
		Short:         mnemoShortDesc,
		Long:          mnemoLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .mnemo/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(memorycmder.NewMemoryCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
