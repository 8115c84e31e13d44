package resolver

import (
	"maps"
	"slices"
	"strings"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Variables is the variable table of a single query. It must not be
// shared between queries; Clone a seeded table per query instead.
type Variables struct {
	values parser.Properties
}

// NewVariables creates a table holding seed, bound in key order.
func NewVariables(seed map[string]string) *Variables {
	v := &Variables{}
	for _, k := range slices.Sorted(maps.Keys(seed)) {
		v.values.Set(k, seed[k])
	}
	return v
}

// Set binds name to value, replacing any earlier binding.
func (v *Variables) Set(name, value string) {
	v.values.Set(name, value)
}

// Lookup returns the value bound to name.
func (v *Variables) Lookup(name string) (string, bool) {
	if v == nil {
		return "", false
	}
	return v.values.Get(name)
}

// Len returns the number of bound variables.
func (v *Variables) Len() int {
	if v == nil {
		return 0
	}
	return v.values.Len()
}

// Map returns a copy of the bindings.
func (v *Variables) Map() map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v.values.Map()
}

// Clone returns an independent copy.
func (v *Variables) Clone() *Variables {
	if v == nil {
		return &Variables{}
	}
	return &Variables{values: v.values.Clone()}
}

// Substitute replaces every ${name} in s with its bound value. Names that
// are not bound are left as written.
func (v *Variables) Substitute(s string) string {
	if v.Len() == 0 || !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		j += i + 2
		b.WriteString(s[:i])
		if val, ok := v.Lookup(s[i+2 : j]); ok {
			b.WriteString(val)
		} else {
			b.WriteString(s[i : j+1])
		}
		s = s[j+1:]
	}
	b.WriteString(s)
	return b.String()
}

// SubstituteProperties returns a copy of props with every value
// substituted.
func (v *Variables) SubstituteProperties(props parser.Properties) parser.Properties {
	var out parser.Properties
	for k, val := range props.All() {
		out.Set(k, v.Substitute(val))
	}
	return out
}
