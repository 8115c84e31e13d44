package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information and check it against required_version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().FullString())
			if app.Config != nil && app.Config.RequiredVersion != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Required: %s (satisfied)\n", app.Config.RequiredVersion)
			}
			return nil
		},
	}
}
