package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/internal/debug"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Reserved block properties. They steer the dispatcher and are removed
// before the extension sees the properties.
const (
	PropOnError = "exec.error"
	PropOutput  = "exec.output"
	PropTimeout = "exec.timeout"
)

// OnError decides what a failing block does to the query.
type OnError string

const (
	// OnErrorAbort fails the whole query.
	OnErrorAbort OnError = "abort"
	// OnErrorWarn logs the failure and keeps going.
	OnErrorWarn OnError = "warn"
)

// ParseOnError validates an OnError value.
func ParseOnError(s string) (OnError, error) {
	switch p := OnError(strings.ToLower(strings.TrimSpace(s))); p {
	case OnErrorAbort, OnErrorWarn:
		return p, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("invalid error policy %q, want abort or warn", s)
}

// WarnOutput is what a block failing under OnErrorWarn contributes.
type WarnOutput string

const (
	// OutputEmpty substitutes the empty string.
	OutputEmpty WarnOutput = "empty"
	// OutputOriginal substitutes the block's source text.
	OutputOriginal WarnOutput = "original"
)

// ParseWarnOutput validates a WarnOutput value.
func ParseWarnOutput(s string) (WarnOutput, error) {
	switch o := WarnOutput(strings.ToLower(strings.TrimSpace(s))); o {
	case OutputEmpty, OutputOriginal:
		return o, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("invalid error output %q, want empty or original", s)
}

// ParseTimeout accepts a Go duration or a number of milliseconds.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFallback routes untagged blocks and unknown tags to the named extension.
func WithFallback(name string) Option {
	return func(d *Dispatcher) {
		d.fallback = name
	}
}

// WithOnError sets the default failure policy of extension failures.
func WithOnError(p OnError) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.onError = p
		}
	}
}

// WithUnknownPolicy sets the failure policy for unknown tags.
func WithUnknownPolicy(p OnError) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.onUnknown = p
		}
	}
}

// WithExtensionPolicy sets the failure policy of one extension.
func WithExtensionPolicy(name string, p OnError) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.policies[name] = p
		}
	}
}

// WithWarnOutput sets what a warned block contributes.
func WithWarnOutput(o WarnOutput) Option {
	return func(d *Dispatcher) {
		if o != "" {
			d.warnOutput = o
		}
	}
}

// WithTimeout bounds every block invocation; zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMiddleware appends middlewares to the invocation chain.
func WithMiddleware(mws ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middlewares = append(d.middlewares, mws...)
	}
}

// Dispatcher resolves block tags to extensions and runs them under the
// configured failure policy. A Dispatcher is safe for concurrent use once
// built; all per-query state travels with the Variables argument.
type Dispatcher struct {
	registry    *extension.Registry
	fallback    string
	onError     OnError
	onUnknown   OnError
	policies    map[string]OnError
	warnOutput  WarnOutput
	timeout     time.Duration
	middlewares []Middleware
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *extension.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		onError:    OnErrorAbort,
		onUnknown:  OnErrorAbort,
		policies:   make(map[string]OnError),
		warnOutput: OutputEmpty,
		logger:     debug.Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the extensions known to the dispatcher.
func (d *Dispatcher) Registry() *extension.Registry {
	return d.registry
}

// blockControl holds the reserved properties of one block.
type blockControl struct {
	onError OnError
	output  WarnOutput
	timeout time.Duration
	hasTO   bool
}

func splitReserved(props parser.Properties) (parser.Properties, blockControl, error) {
	var ctl blockControl
	if props.Len() == 0 {
		return props, ctl, nil
	}

	out := props.Clone()
	var err error
	if v, ok := props.Get(PropOnError); ok {
		if ctl.onError, err = ParseOnError(v); err != nil {
			return props, ctl, err
		}
		out.Delete(PropOnError)
	}
	if v, ok := props.Get(PropOutput); ok {
		if ctl.output, err = ParseWarnOutput(v); err != nil {
			return props, ctl, err
		}
		out.Delete(PropOutput)
	}
	if v, ok := props.Get(PropTimeout); ok {
		if ctl.timeout, err = ParseTimeout(v); err != nil {
			return props, ctl, err
		}
		ctl.hasTO = true
		out.Delete(PropTimeout)
	}
	return out, ctl, nil
}

func firstPolicy(ps ...OnError) OnError {
	for _, p := range ps {
		if p != "" {
			return p
		}
	}
	return OnErrorAbort
}

// Execute runs one block whose content and properties are already
// substituted. Under the warn policy a failure is logged and the block's
// fallback output is returned without error. Cancellation of ctx always
// aborts.
func (d *Dispatcher) Execute(ctx context.Context, b *parser.ExecutableBlock, vars *Variables) (string, error) {
	props, ctl, err := splitReserved(b.Properties)
	if err != nil {
		return "", &ExecutionError{Tag: b.Tag, Position: b.Position, Err: err}
	}

	name := b.Extension()
	ext, ok := d.registry.Lookup(name)
	if !ok && d.fallback != "" {
		ext, ok = d.registry.Lookup(d.fallback)
	}
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownExtension, name)
		return d.fail(b, firstPolicy(ctl.onError, d.onUnknown), ctl.output, err)
	}

	timeout := d.timeout
	if ctl.hasTO {
		timeout = ctl.timeout
	}
	ec := &extension.Context{
		Tag:          b.Tag,
		Suffix:       b.Suffix(),
		Position:     b.Position,
		ReturnsValue: b.ReturnsValue,
		Lookup:       vars.Lookup,
		Logger:       d.logger.With("tag", b.Tag, "position", b.Position),
	}

	event := &BlockEvent{Tag: b.Tag, Position: b.Position, Content: b.Content}
	var out string
	err = d.chain(ctx, event, func() error {
		var err error
		out, err = invoke(ctx, ext, props, b.Content, ec, timeout)
		event.Output = out
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", &ExecutionError{Tag: b.Tag, Position: b.Position, Err: ctx.Err()}
		}
		return d.fail(b, firstPolicy(ctl.onError, d.policies[name], d.onError), ctl.output, err)
	}
	return out, nil
}

// fail applies policy to err.
func (d *Dispatcher) fail(b *parser.ExecutableBlock, policy OnError, output WarnOutput, err error) (string, error) {
	if policy != OnErrorWarn {
		return "", &ExecutionError{Tag: b.Tag, Position: b.Position, Err: err}
	}

	d.logger.Warn("block failed, continuing", "tag", b.Tag, "position", b.Position, "error", err)
	if output == "" {
		output = d.warnOutput
	}
	if output == OutputOriginal {
		return b.Raw, nil
	}
	return "", nil
}

type result struct {
	out string
	err error
}

// invoke runs ext once, bounded by timeout. The extension gets a context
// that expires with the timeout; one that ignores it is abandoned.
func invoke(ctx context.Context, ext extension.Extension, props parser.Properties, content string, ec *extension.Context, timeout time.Duration) (string, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := ext.Execute(callCtx, props, content, ec)
		done <- result{out: out, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-callCtx.Done():
		select {
		case r = <-done:
		default:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
	}

	if r.err == nil {
		return r.out, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if timeout > 0 && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, r.err)
	}
	return "", fmt.Errorf("%w: %w", ErrExtensionFailure, r.err)
}
