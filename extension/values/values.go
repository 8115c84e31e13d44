// Package values turns a compact row list into the row list of a SQL
// VALUES clause.
package values

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Name is the tag the extension is registered under.
const Name = "values"

// PropSeparator overrides the separator placed between rows.
const PropSeparator = "row.separator"

// Values renders `1, 'a'; 2, 'b'` as `(1,'a'),(2,'b')`.
type Values struct{}

// New creates the extension.
func New() *Values {
	return &Values{}
}

// Execute parses content and renders it.
func (v *Values) Execute(_ context.Context, props parser.Properties, content string, _ *extension.Context) (string, error) {
	rows, err := Parse(content)
	if err != nil {
		return "", err
	}
	return Render(rows, props.GetOr(PropSeparator, ",")), nil
}

// Description explains the extension.
func (v *Values) Description() string {
	return "# values\n\n" +
		"Turns rows separated by `;` or new lines, with comma separated literals, " +
		"into a SQL row list. Strings may use single or double quotes and are " +
		"rendered single quoted; numbers and identifiers such as `null` are kept.\n\n" +
		"    insert into t values {{ values: 1, 'a'; 2, \"b\" }}\n"
}

// Parse reads a compact row list into rendered SQL literals.
func Parse(content string) ([][]string, error) {
	t, err := tableParser.ParseString("", content)
	if err != nil {
		return nil, fmt.Errorf("invalid row list: %w", err)
	}

	var rows [][]string
	for _, r := range t.Rows {
		if len(r.Values) == 0 {
			continue
		}
		cols := make([]string, 0, len(r.Values))
		for _, val := range r.Values {
			lit, err := val.literal()
			if err != nil {
				return nil, fmt.Errorf("invalid value at %s: %w", val.Pos, err)
			}
			cols = append(cols, lit)
		}
		rows = append(rows, cols)
	}
	return rows, nil
}

// Render joins rows as parenthesized tuples.
func Render(rows [][]string, sep string) string {
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteByte('(')
		b.WriteString(strings.Join(r, ","))
		b.WriteByte(')')
	}
	return b.String()
}

func (v *value) literal() (string, error) {
	switch {
	case v.Number != nil:
		return *v.Number, nil
	case v.Ident != nil:
		return *v.Ident, nil
	case v.String != nil:
		s := *v.String
		if s[0] == '\'' {
			return Quote(unquoteSingle(s)), nil
		}
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return "", err
		}
		return Quote(unquoted), nil
	}
	return "", fmt.Errorf("empty value")
}

// unquoteSingle strips the quotes of a single-quoted token. Both '' and a
// backslash escape stand for the next character.
func unquoteSingle(s string) string {
	s = s[1 : len(s)-1]
	if !strings.ContainsAny(s, `'\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if (s[i] == '\\' || s[i] == '\'') && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Quote renders s as a single-quoted SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
