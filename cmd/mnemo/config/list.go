package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key and its value from the config.toml file
stored in the .mnemo/ directory, falling back to defaults. Secrets
(storage.postgres_dsn, vector_store.api_key) are masked.

Examples:
  mnemo config list`

const listShortDesc string = "List all configuration values"

// secretKeys are masked by list.
var secretKeys = map[string]struct{}{
	"storage.postgres_dsn": {},
	"vector_store.api_key": {},
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(w, cfger)

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(k))
	}

	for _, key := range keys {
		value := cfg.Get(key)
		padded := fmt.Sprintf("%-*s", maxLen, key)

		switch _, secret := secretKeys[key]; {
		case value == "":
			fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(padded), cliui.DimStyle.Render("<not set>"))
		case secret:
			fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(padded), cliui.DimStyle.Render("********"))
		default:
			fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(padded), cliui.ValueStyle.Render(value))
		}
	}

	fmt.Fprintln(w)
	return nil
}
