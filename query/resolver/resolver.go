// Package resolver turns a parsed query into its final text: it binds
// variables, runs blocks through their extensions in source order and
// assembles the result.
package resolver

import (
	"context"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// VarTag is the reserved tag of blocks that declare variables.
const VarTag = "var"

// Resolve executes the blocks of q from left to right and returns the
// final query text. Variables declared by var blocks are visible to every
// literal, block property and block content that follows them. vars is
// updated in place and must belong to this query alone. On error nothing
// of the partial result is returned.
func Resolve(ctx context.Context, q *parser.ParsedQuery, d *Dispatcher, vars *Variables) (string, error) {
	if d == nil {
		d = NewDispatcher(nil)
	}
	if vars == nil {
		vars = NewVariables(nil)
	}

	nodes := q.Nodes()
	lits := make([]string, 0, len(nodes))
	outputs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		switch n := n.(type) {
		case parser.Literal:
			lits = append(lits, vars.Substitute(string(n)))
		case *parser.ExecutableBlock:
			if err := ctx.Err(); err != nil {
				return "", &ExecutionError{Tag: n.Tag, Position: n.Position, Err: err}
			}
			if n.Tag == VarTag {
				if err := bind(n, vars); err != nil {
					return "", &ExecutionError{Tag: n.Tag, Position: n.Position, Err: err}
				}
				outputs = append(outputs, "")
				continue
			}
			out, err := d.Execute(ctx, substitute(n, vars), vars)
			if err != nil {
				return "", err
			}
			outputs = append(outputs, out)
		}
	}

	derived, err := q.WithLiterals(lits)
	if err != nil {
		return "", err
	}
	return Assemble(derived, outputs), nil
}

// bind applies the assignments of a var block: its properties first, then
// the property list held in its content.
func bind(b *parser.ExecutableBlock, vars *Variables) error {
	for k, v := range b.Properties.All() {
		vars.Set(k, vars.Substitute(v))
	}
	assignments, err := parser.ParseProperties(b.Content)
	if err != nil {
		return err
	}
	for k, v := range assignments.All() {
		vars.Set(k, vars.Substitute(v))
	}
	return nil
}

// substitute returns a copy of b with variables replaced in its content and
// property values.
func substitute(b *parser.ExecutableBlock, vars *Variables) *parser.ExecutableBlock {
	if vars.Len() == 0 {
		return b
	}
	c := *b
	c.Content = vars.Substitute(b.Content)
	c.Properties = vars.SubstituteProperties(b.Properties)
	return &c
}
