package parser

import (
	"errors"
	"strings"
)

// Classify splits the text found between a pair of block markers into the
// extension tag, its properties and the content handed to the extension.
//
// A tag is recognised only when the block holds an unescaped ':' outside
// of parentheses and quotes, and the text before it reads as
// `name` or `name(props...)`. Otherwise the whole text is content and the
// tag is empty. Whitespace around the tag and right after the colon is
// dropped; the rest of the content is kept verbatim.
func Classify(body string) (tag string, props Properties, content string, err error) {
	colon := findSeparator(body)
	if colon < 0 {
		if err := unterminatedProperties(body); err != nil {
			return "", Properties{}, "", err
		}
		return "", Properties{}, body, nil
	}

	head := body[:colon]
	i := skipSpace(head, 0, len(head))
	j := i
	for j < len(head) && isTagChar(head[j]) {
		j++
	}
	name := head[i:j]

	k := skipSpace(head, j, len(head))
	if k < len(head) {
		if head[k] != '(' {
			return "", Properties{}, body, nil
		}
		end, perr := ExtractProperties(head, k+1, len(head), &props)
		if perr != nil {
			// `count(*)` style text in front of a colon is content, a
			// broken `name(key=...)` list is an authoring mistake
			if strings.IndexByte(head[k:], '=') < 0 {
				return "", Properties{}, body, nil
			}
			return "", Properties{}, "", perr
		}
		if end < 0 || skipSpace(head, end, len(head)) != len(head) {
			return "", Properties{}, body, nil
		}
	}

	rest := body[colon+1:]
	return name, props, rest[skipSpace(rest, 0, len(rest)):], nil
}

// unterminatedProperties reports an unterminated quoted value inside a
// leading `name(key='...` list, which hides the tag separator from
// findSeparator.
func unterminatedProperties(body string) error {
	i := skipSpace(body, 0, len(body))
	j := i
	for j < len(body) && isTagChar(body[j]) {
		j++
	}
	k := skipSpace(body, j, len(body))
	if j == i || k >= len(body) || body[k] != '(' {
		return nil
	}
	var props Properties
	if _, err := ExtractProperties(body, k+1, len(body), &props); errors.Is(err, ErrMalformedLiteral) {
		return err
	}
	return nil
}

// findSeparator returns the index of the first ':' that is not escaped,
// quoted or nested in parentheses, or -1.
func findSeparator(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case escapeChar:
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case escapeChar:
			i++
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isTagChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.'
}
