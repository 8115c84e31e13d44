package resolver

import (
	"strings"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Assemble rebuilds the query text from its literal segments and the
// outputs of its blocks, given in block order. Effect blocks and blocks
// without an output contribute nothing.
func Assemble(q *parser.ParsedQuery, outputs []string) string {
	blocks := q.Blocks()

	var b strings.Builder
	for i, seg := range q.Segments() {
		b.WriteString(seg)
		if i < len(blocks) && i < len(outputs) && blocks[i].ReturnsValue {
			b.WriteString(outputs[i])
		}
	}
	return b.String()
}
