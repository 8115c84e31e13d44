package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/ui"
)

// NewExtensionsCommand creates the extensions command.
func NewExtensionsCommand(app *App) *cobra.Command {
	var describe bool

	cmd := &cobra.Command{
		Use:   "extensions [name...]",
		Short: "List the extensions blocks can be tagged with",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = app.Registry.Names()
			}
			for _, name := range names {
				if _, ok := app.Registry.Lookup(name); !ok {
					return fmt.Errorf("unknown extension %q", name)
				}
			}

			if describe {
				for _, name := range names {
					doc := app.Registry.Describe(name)
					if doc == "" {
						doc = "# " + name + "\n\nNo description.\n"
					}
					if err := ui.PrintMarkdown(doc); err != nil {
						return err
					}
				}
				return nil
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, summary(app.Registry.Describe(name))})
			}
			return ui.PrintTable([]string{"Extension", "Summary"}, rows)
		},
	}

	cmd.Flags().BoolVar(&describe, "describe", false, "print the full description")

	return cmd
}

// summary returns the first paragraph line after the markdown title.
func summary(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}
