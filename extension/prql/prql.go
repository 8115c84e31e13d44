// Package prql compiles PRQL block content to SQL with the prqlc compiler.
package prql

import (
	"context"
	"strings"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/extension/shell"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Name is the tag the extension is registered under.
const Name = "prql"

// PropTarget selects the SQL dialect, e.g. sql.postgres.
const PropTarget = "prql.target"

// DefaultPath is the compiler looked up on PATH.
const DefaultPath = "prqlc"

// Compiler turns PRQL into SQL by running prqlc.
type Compiler struct {
	// Path overrides DefaultPath.
	Path string
	// Target is used when the block sets no prql.target.
	Target string
}

// New creates a compiler using prqlc from PATH.
func New() *Compiler {
	return &Compiler{Path: DefaultPath}
}

// Args returns the prqlc arguments for the given target.
func Args(target string) []string {
	args := []string{"compile", "--hide-signature-comment"}
	if target = strings.TrimSpace(target); target != "" {
		args = append(args, "--target", target)
	}
	return args
}

// Execute compiles content and returns the generated SQL.
func (c *Compiler) Execute(ctx context.Context, props parser.Properties, content string, ec *extension.Context) (string, error) {
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	if p, ok := props.Get(shell.PropPath); ok && p != "" {
		path = p
	}
	timeout, err := shell.Timeout(props)
	if err != nil {
		return "", err
	}

	args := Args(props.GetOr(PropTarget, c.Target))
	ec.Log().Debug("compiling prql", "path", path, "args", args)
	out, err := shell.Run(ctx, path, args, content, timeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Description explains the extension.
func (c *Compiler) Description() string {
	return "# prql\n\n" +
		"Compiles the block content from PRQL to SQL by piping it to `prqlc compile`.\n\n" +
		"| Property | Default | Meaning |\n|---|---|---|\n" +
		"| `cli.path` | `prqlc` | compiler executable |\n" +
		"| `cli.timeout` | none | milliseconds before the compiler is killed |\n" +
		"| `prql.target` | generic | dialect, e.g. `sql.postgres` |\n\n" +
		"    {{ prql(prql.target=sql.mysql): from employees | take 10 }}\n"
}
