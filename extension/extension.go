// Package extension defines the interface between the query resolver and
// the handlers that execute block content.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

var (
	// ErrInvalidName is returned when registering an empty or dotted name.
	ErrInvalidName = errors.New("invalid extension name")

	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("extension already registered")
)

// Extension executes the content of a block. For value blocks the returned
// string replaces the block; for effect blocks it is discarded.
type Extension interface {
	Execute(ctx context.Context, props parser.Properties, content string, ec *Context) (string, error)
}

// Describer is implemented by extensions that can explain themselves.
type Describer interface {
	Description() string
}

// Context carries per-invocation information to an extension.
type Context struct {
	// Tag is the block tag as written, e.g. "db.mydb".
	Tag string
	// Suffix is the addressing hint after the first '.', e.g. "mydb".
	Suffix string
	// Position is the block's slot in the parsed query.
	Position     int
	ReturnsValue bool
	// Lookup reads the query's variables as bound at this block.
	Lookup func(name string) (string, bool)
	Logger *slog.Logger
}

// Var returns the named variable, or "" when it is not bound.
func (c *Context) Var(name string) string {
	if c == nil || c.Lookup == nil {
		return ""
	}
	v, _ := c.Lookup(name)
	return v
}

// Log returns the context logger, falling back to slog.Default.
func (c *Context) Log() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Func adapts a plain function to Extension.
type Func func(ctx context.Context, props parser.Properties, content string, ec *Context) (string, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, props parser.Properties, content string, ec *Context) (string, error) {
	return f(ctx, props, content, ec)
}

// Registry maps extension names to implementations, keeping the order in
// which they were registered. It is not safe for concurrent registration;
// build it up front and share it read-only.
type Registry struct {
	names []string
	exts  map[string]Extension
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{exts: make(map[string]Extension)}
}

// Register adds ext under name.
func (r *Registry) Register(name string, ext Extension) error {
	if name == "" || strings.ContainsAny(name, ". \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := r.exts[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.names = append(r.names, name)
	r.exts[name] = ext
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, ext Extension) {
	if err := r.Register(name, ext); err != nil {
		panic(err)
	}
}

// Lookup returns the extension registered under name.
func (r *Registry) Lookup(name string) (Extension, bool) {
	if r == nil {
		return nil, false
	}
	ext, ok := r.exts[name]
	return ext, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Describe returns the description of the named extension, if it has one.
func (r *Registry) Describe(name string) string {
	ext, ok := r.Lookup(name)
	if !ok {
		return ""
	}
	if d, ok := ext.(Describer); ok {
		return d.Description()
	}
	return ""
}
