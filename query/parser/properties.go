package parser

import (
	"iter"
	"strings"
)

// Properties is an insertion-ordered string map. Setting an existing key
// replaces its value but keeps its original position.
type Properties struct {
	keys   []string
	values map[string]string
}

// NewProperties builds a Properties from alternating key/value pairs.
// A trailing key without value is ignored.
func NewProperties(kv ...string) Properties {
	var p Properties
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

// Set stores value under key. The key is trimmed of surrounding whitespace;
// the value is stored as given so quoted values keep their blanks.
func (p *Properties) Set(key, value string) {
	key = strings.TrimSpace(key)
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// GetOr returns the value under key, or def when the key is absent.
func (p Properties) GetOr(key, def string) string {
	if v, ok := p.values[key]; ok {
		return v
	}
	return def
}

// Delete removes key.
func (p *Properties) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (p Properties) Len() int {
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

// All iterates over entries in insertion order.
func (p Properties) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range p.keys {
			if !yield(k, p.values[k]) {
				return
			}
		}
	}
}

// WithPrefix returns the entries whose key starts with prefix, with the
// prefix removed from the key.
func (p Properties) WithPrefix(prefix string) Properties {
	var out Properties
	for k, v := range p.All() {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out.Set(rest, v)
		}
	}
	return out
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	out := Properties{keys: append([]string(nil), p.keys...)}
	if p.values != nil {
		out.values = make(map[string]string, len(p.values))
		for k, v := range p.values {
			out.values[k] = v
		}
	}
	return out
}

// Map returns a plain map copy of the entries.
func (p Properties) Map() map[string]string {
	out := make(map[string]string, len(p.keys))
	for k, v := range p.All() {
		out[k] = v
	}
	return out
}

// Equal reports whether both hold the same entries in the same order.
func (p Properties) Equal(o Properties) bool {
	if len(p.keys) != len(o.keys) {
		return false
	}
	for i, k := range p.keys {
		if o.keys[i] != k || o.values[k] != p.values[k] {
			return false
		}
	}
	return true
}

// String renders the entries as a property list, quoting every value.
func (p Properties) String() string {
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("='")
		b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(p.values[k]))
		b.WriteByte('\'')
	}
	return b.String()
}
