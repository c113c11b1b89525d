// Package initcmder provides the init command for initializing a local .mnemo
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
)

type initCommander struct {
	preset string
	force  bool
}

const initLongDesc string = `Initialize a new .mnemo/ directory in the current working directory.

Creates a local .mnemo/ directory that takes precedence over ~/.mnemo/ and
writes a config.toml for the chosen preset. An existing config.toml is kept
unless --force is given.

Presets:
  local      SQLite keyword store in .mnemo/ (default)
  semantic   local, plus an embedded chromem vector index
  cluster    PostgreSQL, Qdrant and Kafka audit on localhost

Examples:
  mnemo init
  mnemo init --preset semantic
  mnemo init --preset cluster --force`

const initShortDesc string = "Initialize a local .mnemo/ directory"

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Config preset ("+strings.Join(config.PresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(cmd *cobra.Command) error {
	cfg, err := config.NewPresetConfig(c.preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dotdir.DirName)

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil && !c.force:
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(dir))
	return nil
}
