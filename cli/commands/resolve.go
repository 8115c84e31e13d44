package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/config"
	"github.com/jdbcx/jdbcx-sub006/cli/internal/ui"
	"github.com/jdbcx/jdbcx-sub006/cli/internal/watch"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand(app *App) *cobra.Command {
	var (
		file      string
		varPairs  []string
		watchFile bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [query]",
		Short: "Run the blocks of a query and print the final text",
		Long: `Resolve a query template: declare variables, run every block through
its extension in order and print the resulting query.

With --watch the query file is resolved again whenever it changes.`,
		Example: `  jdbcx resolve "select {{ shell: echo 1 }}"
  jdbcx resolve -f query.sql --var table=users
  jdbcx resolve -f query.sql --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(varPairs)
			if err != nil {
				return err
			}
			if watchFile {
				if file == "" {
					return fmt.Errorf("--watch needs --file")
				}
				return runWatch(cmd, app, file, vars)
			}

			text, err := readQuery(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			out, err := app.Engine.ResolveWith(cmd.Context(), text, vars)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a file")
	cmd.Flags().StringArrayVar(&varPairs, "var", nil, "bind a variable, name=value (repeatable)")
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "resolve again when the file changes")

	return cmd
}

func runWatch(cmd *cobra.Command, app *App, file string, vars map[string]string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.NewWatcher(file, func() error {
		data, err := afero.ReadFile(config.AppFs, file)
		if err != nil {
			return err
		}
		out, err := app.Engine.ResolveWith(ctx, string(data), vars)
		if err != nil {
			ui.PrintError("%v", err)
			return nil
		}
		ui.PrintSection(file)
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	})
	if err != nil {
		return err
	}
	ui.PrintInfo("watching %s, press Ctrl+C to stop", file)
	return w.Run(ctx)
}
