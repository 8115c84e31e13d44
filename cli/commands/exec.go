package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/ui"
	"github.com/jdbcx/jdbcx-sub006/internal/pool"
)

// NewExecCommand creates the exec command.
func NewExecCommand(app *App) *cobra.Command {
	var (
		file       string
		datasource string
		varPairs   []string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "exec [query]",
		Short: "Resolve a query and run it against a datasource",
		Long: `Resolve a query template and execute the final SQL on one of the
configured datasources, printing the result set as a table.`,
		Example: `  jdbcx exec --datasource pg "select * from {{ shell: echo users }}"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if datasource == "" && !dryRun {
				return fmt.Errorf("--datasource is required, configured: %s", strings.Join(app.DB.Manager().IDs(), ", "))
			}
			vars, err := parseVars(varPairs)
			if err != nil {
				return err
			}
			text, err := readQuery(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			sql, err := app.Engine.ResolveWith(cmd.Context(), text, vars)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), sql)
				return nil
			}
			if strings.TrimSpace(sql) == "" {
				ui.PrintWarning("query resolved to nothing, not executed")
				return nil
			}

			p, err := app.DB.Manager().Get(cmd.Context(), datasource)
			if err != nil {
				return err
			}
			return runSQL(cmd, p, sql)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a file")
	cmd.Flags().StringVarP(&datasource, "datasource", "d", "", "configured datasource to run the query on")
	cmd.Flags().StringArrayVar(&varPairs, "var", nil, "bind a variable, name=value (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resolved query instead of running it")

	return cmd
}

func runSQL(cmd *cobra.Command, p *pool.Pool, sql string) error {
	ctx := cmd.Context()
	rows, err := p.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		ui.PrintSuccess("statement executed")
		return rows.Err()
	}

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	var data [][]string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = cell(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := ui.PrintTable(cols, data); err != nil {
		return err
	}
	ui.PrintSuccess("%d row(s)", len(data))
	return nil
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ui.Muted("NULL")
	case []byte:
		return string(v)
	}
	return fmt.Sprint(v)
}
