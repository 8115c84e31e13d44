package parser

import (
	"fmt"
	"strings"
)

// ExecutableBlock is one {{ ... }} or {% ... %} occurrence in a query.
type ExecutableBlock struct {
	// Position is the index of the block's placeholder in Parts().
	Position int
	// Tag names the extension; it may carry a dotted addressing suffix.
	Tag        string
	Properties Properties
	Content    string
	// ReturnsValue is true for {{ }} and false for {% %}.
	ReturnsValue bool
	// Raw is the block's source text, markers included.
	Raw string
}

// Extension returns the part of the tag before the first '.'.
func (b *ExecutableBlock) Extension() string {
	name, _, _ := strings.Cut(b.Tag, ".")
	return name
}

// Suffix returns the part of the tag after the first '.'.
func (b *ExecutableBlock) Suffix() string {
	_, suffix, _ := strings.Cut(b.Tag, ".")
	return suffix
}

// Equal compares two blocks field by field.
func (b *ExecutableBlock) Equal(o *ExecutableBlock) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Position == o.Position &&
		b.Tag == o.Tag &&
		b.Content == o.Content &&
		b.ReturnsValue == o.ReturnsValue &&
		b.Properties.Equal(o.Properties)
}

func (b *ExecutableBlock) String() string {
	kind := "effect"
	if b.ReturnsValue {
		kind = "value"
	}
	return fmt.Sprintf("%s#%d(tag=%q, props=[%s], content=%q)", kind, b.Position, b.Tag, b.Properties, b.Content)
}

// Node is an element of a parsed query: a Literal or an *ExecutableBlock.
type Node interface {
	node()
}

// Literal is plain query text.
type Literal string

func (Literal) node()          {}
func (*ExecutableBlock) node() {}

// ParsedQuery is the decomposition of a query into literal text and
// executable blocks, in source order. It is not modified after parsing.
type ParsedQuery struct {
	nodes  []Node
	blocks []*ExecutableBlock
}

func newParsedQuery(nodes []Node) *ParsedQuery {
	q := &ParsedQuery{nodes: nodes}
	for _, n := range nodes {
		if b, ok := n.(*ExecutableBlock); ok {
			q.blocks = append(q.blocks, b)
		}
	}
	return q
}

// Nodes returns the literal and block nodes in source order.
func (q *ParsedQuery) Nodes() []Node {
	return append([]Node(nil), q.nodes...)
}

// Blocks returns the executable blocks in source order.
func (q *ParsedQuery) Blocks() []*ExecutableBlock {
	return append([]*ExecutableBlock(nil), q.blocks...)
}

// HasBlocks reports whether the query holds any executable block.
func (q *ParsedQuery) HasBlocks() bool {
	return len(q.blocks) > 0
}

// Parts returns the slot layout of the query: one entry per literal run
// and one empty placeholder per block, where a block's Position is the
// index of its placeholder. A query without nodes has a single empty part.
func (q *ParsedQuery) Parts() []string {
	if len(q.nodes) == 0 {
		return []string{""}
	}
	parts := make([]string, len(q.nodes))
	for i, n := range q.nodes {
		if lit, ok := n.(Literal); ok {
			parts[i] = string(lit)
		}
	}
	return parts
}

// Segments returns the literal text around the blocks: segment i precedes
// block i and the last segment follows the last block, so there is always
// exactly one more segment than blocks.
func (q *ParsedQuery) Segments() []string {
	segs := make([]string, 0, len(q.blocks)+1)
	var cur strings.Builder
	for _, n := range q.nodes {
		switch n := n.(type) {
		case Literal:
			cur.WriteString(string(n))
		case *ExecutableBlock:
			segs = append(segs, cur.String())
			cur.Reset()
		}
	}
	return append(segs, cur.String())
}

// WithLiterals returns a copy whose literal nodes are replaced, in order,
// by texts. Blocks are shared with the receiver.
func (q *ParsedQuery) WithLiterals(texts []string) (*ParsedQuery, error) {
	nodes := make([]Node, len(q.nodes))
	k := 0
	for i, n := range q.nodes {
		if _, ok := n.(Literal); ok {
			if k >= len(texts) {
				return nil, fmt.Errorf("got %d literal texts, need more", len(texts))
			}
			nodes[i] = Literal(texts[k])
			k++
			continue
		}
		nodes[i] = n
	}
	if k != len(texts) {
		return nil, fmt.Errorf("got %d literal texts, need %d", len(texts), k)
	}
	return newParsedQuery(nodes), nil
}

// Equal reports whether both queries have the same literal text and blocks.
func (q *ParsedQuery) Equal(o *ParsedQuery) bool {
	if q == nil || o == nil {
		return q == o
	}
	if len(q.nodes) != len(o.nodes) {
		// queries without blocks compare by literal text only
		return !q.HasBlocks() && !o.HasBlocks() && q.Segments()[0] == o.Segments()[0]
	}
	for i, n := range q.nodes {
		switch n := n.(type) {
		case Literal:
			if lit, ok := o.nodes[i].(Literal); !ok || lit != n {
				return false
			}
		case *ExecutableBlock:
			if b, ok := o.nodes[i].(*ExecutableBlock); !ok || !n.Equal(b) {
				return false
			}
		}
	}
	return true
}

func (q *ParsedQuery) String() string {
	return fmt.Sprintf("ParsedQuery(parts=%q, blocks=%v)", q.Parts(), q.blocks)
}
