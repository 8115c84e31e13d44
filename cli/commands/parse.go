package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/ui"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// NewParseCommand creates the parse command.
func NewParseCommand(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "parse [query]",
		Short: "Show how a query splits into text and blocks",
		Long: `Parse a query template and print its parts and executable blocks
without running anything. The query is read from the arguments, --file or
standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readQuery(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			q, err := app.Engine.Parse(text)
			if err != nil {
				return err
			}
			return printParsed(q)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a file")

	return cmd
}

func printParsed(q *parser.ParsedQuery) error {
	ui.PrintSection("Parts")
	parts := q.Parts()
	rows := make([][]string, 0, len(parts))
	for i, p := range parts {
		rows = append(rows, []string{strconv.Itoa(i), display(p)})
	}
	if err := ui.PrintTable([]string{"#", "Text"}, rows); err != nil {
		return err
	}

	if !q.HasBlocks() {
		ui.PrintInfo("no executable blocks")
		return nil
	}

	ui.PrintSection("Blocks")
	rows = rows[:0]
	for _, b := range q.Blocks() {
		kind := "effect"
		if b.ReturnsValue {
			kind = "value"
		}
		rows = append(rows, []string{
			strconv.Itoa(b.Position),
			kind,
			display(b.Tag),
			display(b.Properties.String()),
			display(b.Content),
		})
	}
	return ui.PrintTable([]string{"Position", "Kind", "Tag", "Properties", "Content"}, rows)
}

// display makes blanks and line breaks visible in a table cell.
func display(s string) string {
	if s == "" {
		return ui.Muted("(empty)")
	}
	q := strconv.Quote(s)
	if q[1:len(q)-1] == s && strings.TrimSpace(s) == s {
		return s
	}
	return q
}
