// Package parser splits a query template into literal text and executable
// blocks.
//
// A query may embed value blocks, {{ tag(props): content }}, whose output
// replaces the block, and effect blocks, {% tag(props): content %}, which
// run for their side effect only. A backslash in front of a marker takes
// away its meaning. Parsing is pure and safe for concurrent use.
//
// A block ends at the first unescaped closing marker, so a variable that
// ends a value block needs a space before it: {{ tag: ${t} }}. Written as
// {{ tag: ${t}}} the block closes on the brace of ${t}.
package parser

import (
	"github.com/jdbcx/jdbcx-sub006/internal/debug"
)

type state int

const (
	stateScanning state = iota
	stateInValueBlock
	stateInEffectBlock
)

// closing returns the marker that ends the block state s.
func (s state) closing() string {
	if s == stateInEffectBlock {
		return EffectClose
	}
	return ValueClose
}

// Parse decomposes query into literal text and executable blocks. A block
// whose closing marker never shows up is not an error: its opening marker
// and everything after it stay literal text.
func Parse(query string) (*ParsedQuery, error) {
	var (
		nodes   []Node
		pending string
		cursor  int
		st      = stateScanning
	)

	emit := func(text string) {
		if text != "" {
			nodes = append(nodes, Literal(text))
		}
	}

	for st == stateScanning {
		open, next := nextOpening(query, cursor)
		if open < 0 {
			pending += unescapeMarkers(query[cursor:], false)
			break
		}
		st = next

		bodyStart := open + len(ValueOpen)
		closeAt := FindMarker(query, bodyStart, st.closing())
		if closeAt < 0 {
			debug.Debug("unterminated block kept as literal", "offset", open)
			pending += unescapeMarkers(query[cursor:], false)
			break
		}

		pending += unescapeMarkers(query[cursor:open], true)
		emit(pending)
		pending = ""

		tag, props, content, err := Classify(unescapeMarkers(query[bodyStart:closeAt], true))
		if err != nil {
			return nil, &ParseError{Offset: open, Err: err}
		}
		nodes = append(nodes, &ExecutableBlock{
			Position:     len(nodes),
			Tag:          tag,
			Properties:   props,
			Content:      content,
			ReturnsValue: st == stateInValueBlock,
			Raw:          query[open : closeAt+len(st.closing())],
		})

		cursor = closeAt + len(st.closing())
		st = stateScanning
	}

	if len(nodes) == 0 {
		// a query without blocks is one literal, even when empty
		return newParsedQuery([]Node{Literal(pending)}), nil
	}
	emit(pending)

	q := newParsedQuery(nodes)
	debug.Debug("parsed query", "length", len(query), "blocks", len(q.blocks))
	return q, nil
}

// MustParse is like Parse but panics on error.
func MustParse(query string) *ParsedQuery {
	q, err := Parse(query)
	if err != nil {
		panic(err)
	}
	return q
}

// nextOpening finds the earliest unescaped opening marker at or after from
// and the block state it leads to.
func nextOpening(s string, from int) (int, state) {
	v := FindMarker(s, from, ValueOpen)
	e := FindMarker(s, from, EffectOpen)
	switch {
	case v < 0 && e < 0:
		return -1, stateScanning
	case e < 0 || (v >= 0 && v < e):
		return v, stateInValueBlock
	default:
		return e, stateInEffectBlock
	}
}
