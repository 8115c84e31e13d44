package commands

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/config"
	"github.com/jdbcx/jdbcx-sub006/cli/internal/ui"
)

// NewConfigCommand creates the config command and its sub-commands.
func NewConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(app))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the defaults",
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = config.FileName + ".yaml"
			}
			if exists, _ := afero.Exists(config.AppFs, output); exists && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", output)
			}

			cfg, err := config.LoadConfig("")
			if err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, output); err != nil {
				return err
			}
			ui.PrintSuccess("wrote %s", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default .jdbcx.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			file := cfg.File
			if file == "" {
				file = ui.Muted("(none)")
			}
			rows := [][]string{
				{"file", file},
				{"log_level", cfg.LogLevel},
				{"timeout", cfg.Timeout.String()},
				{"on_error", cfg.OnError},
				{"on_error_output", cfg.OnErrorOutput},
				{"default_extension", cfg.DefaultExtension},
				{"cache.size", fmt.Sprint(cfg.CacheSize)},
				{"cache.ttl", cfg.CacheTTL.String()},
				{"datasources", fmt.Sprint(len(cfg.Datasources))},
				{"variables", fmt.Sprint(len(cfg.Variables))},
			}
			if err := ui.PrintTable([]string{"Key", "Value"}, rows); err != nil {
				return err
			}
			if !check {
				return nil
			}
			return checkDatasources(cmd, app)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "connect to every datasource and print its pool")

	return cmd
}

// checkDatasources opens every configured datasource and prints the pool
// statistics.
func checkDatasources(cmd *cobra.Command, app *App) error {
	m := app.DB.Manager()
	var failed int
	for _, id := range m.IDs() {
		if _, err := m.Get(cmd.Context(), id); err != nil {
			ui.PrintError("datasource %s: %v", id, err)
			failed++
		}
	}

	ui.PrintSection("Datasources")
	var rows [][]string
	for _, s := range m.Stats() {
		last := ui.Muted("never")
		if !s.LastHealthCheck.IsZero() {
			last = s.LastHealthCheck.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			s.ID,
			s.Driver,
			fmt.Sprint(s.OpenConnections),
			fmt.Sprint(s.InUse),
			fmt.Sprint(s.Idle),
			fmt.Sprint(s.MaxOpenConnections),
			last,
		})
	}
	if err := ui.PrintTable([]string{"ID", "Driver", "Open", "In use", "Idle", "Max", "Last check"}, rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d datasource(s) unreachable", failed)
	}
	return nil
}
