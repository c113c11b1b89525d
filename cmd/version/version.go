// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/utils"
)

type versionCommander struct {
	short bool
}

// NewVersionCmd prints the build information embedded at link time.
func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the mnemo version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}
	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version")

	return cmd
}

func (c *versionCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if c.short {
		_, err := fmt.Fprintln(out, utils.Version)
		return err
	}

	_, err := fmt.Fprintf(out, "mnemo %s (%s, built %s)\n", utils.Version, utils.Sha, utils.Buildtime)
	return err
}
