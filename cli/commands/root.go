package commands

import (
	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/version"
)

// NewRootCommand creates the jdbcx command with every sub-command.
func NewRootCommand() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:   "jdbcx",
		Short: "Resolve query templates with embedded executable blocks",
		Long: `jdbcx expands query templates. Value blocks {{ tag(props): content }}
are replaced by the output of the extension named by tag, effect blocks
{% tag(props): content %} run for their side effect and vanish.

    select * from {{ db.mydb: select table_name from allowed }}
    {% var: table=users %}select count(*) from ${table}`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			return app.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.flags.configFile, "config", "", "config file (default .jdbcx.yaml in ., $HOME or $HOME/.config/jdbcx)")
	flags.BoolVar(&app.flags.debug, "debug", false, "log debug information")
	flags.StringVar(&app.flags.timeout, "timeout", "", "per block timeout, e.g. 10s or 500 (milliseconds)")
	flags.StringVar(&app.flags.onError, "on-error", "", "default failure policy: abort or warn")

	cmd.AddCommand(NewParseCommand(app))
	cmd.AddCommand(NewResolveCommand(app))
	cmd.AddCommand(NewExecCommand(app))
	cmd.AddCommand(NewExtensionsCommand(app))
	cmd.AddCommand(NewVersionCommand(app))
	cmd.AddCommand(NewConfigCommand(app))

	return cmd
}

// skipSetup marks commands that must run without loading configuration.
const skipSetup = "jdbcx/skip-setup"

// Execute runs the command line.
func Execute() error {
	return NewRootCommand().Execute()
}
