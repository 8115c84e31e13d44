package parser

// ExtractProperties parses a comma separated name=value list starting
// right after an opening '(' and stores the entries into props. It returns
// the offset just after the closing ')', not the index of ')' itself, or
// -1 when the region up to end holds nothing but whitespace.
func ExtractProperties(s string, start, end int, props *Properties) (int, error) {
	if end > len(s) {
		end = len(s)
	}
	i := skipSpace(s, start, end)
	if i >= end {
		return -1, nil
	}
	if s[i] == ')' {
		return i + 1, nil
	}

	for {
		name, stop := ExtractSpan(s, i, end, '=', ',', ')')
		if stop != '=' {
			return 0, malformedProperty(i, "missing '=' after property name")
		}
		if name.Text == "" {
			return 0, malformedProperty(i, "empty property name")
		}

		i = skipSpace(s, name.End, end)
		if i < end && (s[i] == '\'' || s[i] == '"') {
			value, err := ExtractQuoted(s, i+1, end, s[i])
			if err != nil {
				return 0, err
			}
			props.Set(name.Text, value.Text)
			i = skipSpace(s, value.End, end)
			if i >= end {
				return 0, malformedProperty(i, "missing closing ')'")
			}
			stop = s[i]
			if stop != ',' && stop != ')' {
				return 0, malformedProperty(i, "unexpected character after quoted value")
			}
			i++
		} else {
			value, c := ExtractSpan(s, i, end, ',', ')')
			props.Set(name.Text, value.Text)
			if c == 0 {
				return 0, malformedProperty(end, "missing closing ')'")
			}
			stop, i = c, value.End
		}

		if stop == ')' {
			return i, nil
		}
		// a trailing comma right before ')' is tolerated
		if j := skipSpace(s, i, end); j < end && s[j] == ')' {
			return j + 1, nil
		}
	}
}

// ParseProperties parses a whole string as a property list that ends with
// the text instead of a closing ')'.
func ParseProperties(s string) (Properties, error) {
	var props Properties
	end, err := ExtractProperties(s+")", 0, len(s)+1, &props)
	if err != nil {
		return Properties{}, err
	}
	if end >= 0 && end != len(s)+1 {
		return Properties{}, malformedProperty(end-1, "unexpected ')'")
	}
	return props, nil
}

func skipSpace(s string, i, end int) int {
	for i < end && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
