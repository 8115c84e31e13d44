package parser

import (
	"strings"
)

const escapeChar = '\\'

// Block markers.
const (
	ValueOpen   = "{{"
	ValueClose  = "}}"
	EffectOpen  = "{%"
	EffectClose = "%}"
)

var markers = [...]string{ValueOpen, ValueClose, EffectOpen, EffectClose}

// Part is the result of an extraction: the extracted text and the offset
// right after it, where scanning resumes.
type Part struct {
	End  int
	Text string
}

// ExtractQuoted reads a quoted literal from s. start points just after the
// opening quote and end bounds the scan. A backslash escapes the quote
// character and itself; any other backslash is kept. Two adjacent quote
// characters stand for one literal quote. The returned Part ends right
// after the closing quote.
func ExtractQuoted(s string, start, end int, quote byte) (Part, error) {
	if end > len(s) {
		end = len(s)
	}
	if start < 0 || start > end {
		return Part{}, malformedLiteral(start, quote)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		c := s[i]
		switch {
		case c == escapeChar && i+1 < end && (s[i+1] == quote || s[i+1] == escapeChar):
			i++
			b.WriteByte(s[i])
		case c == quote:
			if i+1 < end && s[i+1] == quote {
				i++
				b.WriteByte(quote)
				continue
			}
			return Part{End: i + 1, Text: b.String()}, nil
		default:
			b.WriteByte(c)
		}
	}
	return Part{}, malformedLiteral(start, quote)
}

// ExtractSpan reads unquoted text from s up to the first unescaped stop
// character or end. The stop character is consumed and returned as the
// second result; 0 means the span ran into end. The text is trimmed.
// Without stop characters backslashes are left untouched and the span
// always runs to end, even when start is already past it.
func ExtractSpan(s string, start, end int, stops ...byte) (Part, byte) {
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return Part{End: end}, 0
	}
	if len(stops) == 0 {
		return Part{End: end, Text: strings.TrimSpace(s[start:end])}, 0
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		c := s[i]
		if c == escapeChar && i+1 < end && (s[i+1] == escapeChar || isStop(s[i+1], stops)) {
			i++
			b.WriteByte(s[i])
			continue
		}
		if isStop(c, stops) {
			return Part{End: i + 1, Text: strings.TrimSpace(b.String())}, c
		}
		b.WriteByte(c)
	}
	return Part{End: end, Text: strings.TrimSpace(b.String())}, 0
}

func isStop(c byte, stops []byte) bool {
	for _, s := range stops {
		if c == s {
			return true
		}
	}
	return false
}

// FindMarker returns the index of the first unescaped marker in s at or
// after start, or -1. A marker preceded by an odd number of backslashes is
// escaped and skipped.
func FindMarker(s string, start int, marker string) int {
	if start < 0 {
		start = 0
	}
	for i := start; i+len(marker) <= len(s); {
		j := strings.Index(s[i:], marker)
		if j < 0 {
			return -1
		}
		j += i
		if !isEscaped(s, j) {
			return j
		}
		i = j + len(marker)
	}
	return -1
}

// isEscaped reports whether s[i] is preceded by an odd backslash run.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == escapeChar; j-- {
		n++
	}
	return n%2 == 1
}

func markerAt(s string, i int) bool {
	if i+2 > len(s) {
		return false
	}
	for _, m := range markers {
		if s[i:i+2] == m {
			return true
		}
	}
	return false
}

// unescapeMarkers halves every backslash run that sits right before a
// marker; the odd backslash of an escaped marker is dropped. When
// beforeMarker is set the text is cut right before an active marker, so a
// trailing run is halved as well. Other backslashes are kept as-is.
func unescapeMarkers(s string, beforeMarker bool) string {
	if strings.IndexByte(s, escapeChar) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != escapeChar {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == escapeChar {
			j++
		}
		n := j - i
		if markerAt(s, j) || (j == len(s) && beforeMarker) {
			n /= 2
		}
		b.WriteString(strings.Repeat(`\`, n))
		i = j
	}
	return b.String()
}
