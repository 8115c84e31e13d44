// Package query ties the parser and the resolver together behind a single
// engine configured once per process.
package query

import (
	"context"
	"time"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/internal/debug"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
	"github.com/jdbcx/jdbcx-sub006/query/resolver"
)

// Config holds the engine settings that apply to every query.
type Config struct {
	// OnError is the failure policy of blocks that don't set exec.error.
	OnError resolver.OnError
	// WarnOutput is what a block failing under the warn policy contributes.
	WarnOutput resolver.WarnOutput
	// Timeout bounds each block, zero meaning no limit.
	Timeout time.Duration
	// DefaultExtension handles untagged blocks and unknown tags.
	DefaultExtension string
	// Variables seed the variable table of every query.
	Variables map[string]string
	// ExtensionPolicies override OnError per extension.
	ExtensionPolicies map[string]resolver.OnError
	// SlowBlock logs blocks running longer than this at warn level.
	SlowBlock time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		OnError:    resolver.OnErrorAbort,
		WarnOutput: resolver.OutputEmpty,
		Timeout:    30 * time.Second,
	}
}

// Engine parses and resolves queries.
type Engine struct {
	dispatcher *resolver.Dispatcher
	seed       *resolver.Variables
}

// NewEngine creates an engine dispatching to the extensions in registry.
// Extra options are applied after the ones derived from cfg.
func NewEngine(registry *extension.Registry, cfg Config, opts ...resolver.Option) *Engine {
	logger := debug.Logger()
	base := []resolver.Option{
		resolver.WithLogger(logger),
		resolver.WithTimeout(cfg.Timeout),
		resolver.WithMiddleware(resolver.LoggingMiddleware(logger)),
	}
	if cfg.OnError != "" {
		base = append(base, resolver.WithOnError(cfg.OnError))
	}
	if cfg.WarnOutput != "" {
		base = append(base, resolver.WithWarnOutput(cfg.WarnOutput))
	}
	if cfg.DefaultExtension != "" {
		base = append(base, resolver.WithFallback(cfg.DefaultExtension))
	}
	for name, p := range cfg.ExtensionPolicies {
		base = append(base, resolver.WithExtensionPolicy(name, p))
	}
	if cfg.SlowBlock > 0 {
		base = append(base, resolver.WithMiddleware(resolver.SlowBlockMiddleware(logger, cfg.SlowBlock)))
	}

	return &Engine{
		dispatcher: resolver.NewDispatcher(registry, append(base, opts...)...),
		seed:       resolver.NewVariables(cfg.Variables),
	}
}

// Dispatcher returns the engine's dispatcher.
func (e *Engine) Dispatcher() *resolver.Dispatcher {
	return e.dispatcher
}

// Parse splits query into literals and executable blocks.
func (e *Engine) Parse(query string) (*parser.ParsedQuery, error) {
	return parser.Parse(query)
}

// Resolve parses query and resolves it with the configured variables.
func (e *Engine) Resolve(ctx context.Context, query string) (string, error) {
	return e.ResolveWith(ctx, query, nil)
}

// ResolveWith is like Resolve, with vars bound on top of the configured
// variables for this query only.
func (e *Engine) ResolveWith(ctx context.Context, query string, vars map[string]string) (string, error) {
	q, err := parser.Parse(query)
	if err != nil {
		return "", err
	}
	return e.ResolveParsed(ctx, q, vars)
}

// ResolveParsed resolves an already parsed query. Each call gets its own
// variable table, so the engine may be shared between goroutines.
func (e *Engine) ResolveParsed(ctx context.Context, q *parser.ParsedQuery, vars map[string]string) (string, error) {
	table := e.seed.Clone()
	for k, v := range vars {
		table.Set(k, v)
	}
	return resolver.Resolve(ctx, q, e.dispatcher, table)
}
