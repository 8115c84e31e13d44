package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

func echo(_ context.Context, _ parser.Properties, content string, _ *extension.Context) (string, error) {
	return content, nil
}

func upper(_ context.Context, _ parser.Properties, content string, _ *extension.Context) (string, error) {
	return strings.ToUpper(content), nil
}

func failing(_ context.Context, _ parser.Properties, _ string, _ *extension.Context) (string, error) {
	return "", errors.New("boom")
}

func testRegistry(t *testing.T) *extension.Registry {
	t.Helper()
	r := extension.NewRegistry()
	require.NoError(t, r.Register("echo", extension.Func(echo)))
	require.NoError(t, r.Register("upper", extension.Func(upper)))
	require.NoError(t, r.Register("fail", extension.Func(failing)))
	return r
}

func TestAssemble(t *testing.T) {
	q := parser.MustParse("select {{ a: x }} from {% b: y %} where {{ c: z }}")
	outputs := []string{"1", "ignored", "3"}

	first := Assemble(q, outputs)
	assert.Equal(t, "select 1 from  where 3", first)
	assert.Equal(t, first, Assemble(q, outputs))

	assert.Equal(t, "select  from  where ", Assemble(q, nil))
	assert.Equal(t, "plain", Assemble(parser.MustParse("plain"), nil))
}

func TestResolveVariables(t *testing.T) {
	d := NewDispatcher(testRegistry(t))
	q := parser.MustParse("select ${a} {% var: a=1, b='${a}2' %}, ${a}, {{ echo(p=${b}): ${b}-${c} }}, ${unknown}")

	vars := NewVariables(nil)
	out, err := Resolve(context.Background(), q, d, vars)
	require.NoError(t, err)
	assert.Equal(t, "select ${a} , 1, 12-${c} , ${unknown}", out)
	assert.Equal(t, map[string]string{"a": "1", "b": "12"}, vars.Map())
}

func TestResolveVarProperties(t *testing.T) {
	q := parser.MustParse("{% var(a=x): b=${a}y %}${a}${b}")
	out, err := Resolve(context.Background(), q, nil, NewVariables(map[string]string{"z": "0"}))
	require.NoError(t, err)
	assert.Equal(t, "xxy", out)

	_, err = Resolve(context.Background(), parser.MustParse("{% var: a %}"), nil, nil)
	assert.ErrorIs(t, err, parser.ErrMalformedProperty)
}

func TestResolveSeededVariablesAreIsolated(t *testing.T) {
	seed := NewVariables(map[string]string{"t": "users"})
	q := parser.MustParse("{% var: t=orders %}select * from ${t}")

	out, err := Resolve(context.Background(), q, nil, seed.Clone())
	require.NoError(t, err)
	assert.Equal(t, "select * from orders", out)

	v, _ := seed.Lookup("t")
	assert.Equal(t, "users", v)
}

func TestResolveDispatch(t *testing.T) {
	var got *extension.Context
	var gotProps parser.Properties
	r := testRegistry(t)
	require.NoError(t, r.Register("db", extension.Func(func(_ context.Context, props parser.Properties, content string, ec *extension.Context) (string, error) {
		got, gotProps = ec, props
		return "t1", nil
	})))

	d := NewDispatcher(r)
	q := parser.MustParse("select * from {{ db.mydb(exec.error=warn, exec.timeout=500, limit=1): tables }}")
	out, err := Resolve(context.Background(), q, d, nil)
	require.NoError(t, err)
	assert.Equal(t, "select * from t1", out)

	require.NotNil(t, got)
	assert.Equal(t, "db.mydb", got.Tag)
	assert.Equal(t, "mydb", got.Suffix)
	assert.Equal(t, 1, got.Position)
	assert.True(t, got.ReturnsValue)
	assert.Equal(t, []string{"limit"}, gotProps.Keys())
}

func TestResolveUnknownExtension(t *testing.T) {
	q := parser.MustParse("a {{ nope: 1 }} b")

	_, err := Resolve(context.Background(), q, NewDispatcher(testRegistry(t)), nil)
	require.Error(t, err)
	assert.True(t, IsUnknownExtension(err))
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "nope", execErr.Tag)
	assert.Equal(t, 1, execErr.Position)

	// untagged blocks go to the fallback
	d := NewDispatcher(testRegistry(t), WithFallback("upper"))
	out, err := Resolve(context.Background(), parser.MustParse("a {{ x }} {{ nope: y }}"), d, nil)
	require.NoError(t, err)
	assert.Equal(t, "a  X  Y ", out)

	// the extension default does not cover unknown tags
	d = NewDispatcher(testRegistry(t), WithOnError(OnErrorWarn))
	_, err = Resolve(context.Background(), q, d, nil)
	assert.True(t, IsUnknownExtension(err))

	d = NewDispatcher(testRegistry(t), WithUnknownPolicy(OnErrorWarn))
	out, err = Resolve(context.Background(), q, d, nil)
	require.NoError(t, err)
	assert.Equal(t, "a  b", out)
}

func TestResolveFailurePolicy(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		opts    []Option
		want    string
		wantErr bool
	}{
		{"abort by default", "x {{ fail: 1 }} y", nil, "", true},
		{"warn by block", "x {{ fail(exec.error=warn): 1 }} y", nil, "x  y", false},
		{"warn keeps original", "x {{ fail(exec.error=warn, exec.output=original): 1 }} y", nil, "x {{ fail(exec.error=warn, exec.output=original): 1 }} y", false},
		{"warn by dispatcher", "x {{ fail: 1 }} y", []Option{WithOnError(OnErrorWarn), WithWarnOutput(OutputOriginal)}, "x {{ fail: 1 }} y", false},
		{"warn by extension", "x {{ fail: 1 }} y", []Option{WithExtensionPolicy("fail", OnErrorWarn)}, "x  y", false},
		{"block overrides extension", "x {{ fail(exec.error=abort): 1 }} y", []Option{WithExtensionPolicy("fail", OnErrorWarn)}, "", true},
		{"invalid reserved property", "x {{ echo(exec.error=maybe): 1 }} y", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(testRegistry(t), tt.opts...)
			out, err := Resolve(context.Background(), parser.MustParse(tt.query), d, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestResolveExtensionFailure(t *testing.T) {
	_, err := Resolve(context.Background(), parser.MustParse("{{ fail: 1 }}"), NewDispatcher(testRegistry(t)), nil)
	assert.ErrorIs(t, err, ErrExtensionFailure)
	assert.False(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestResolvePanickingExtension(t *testing.T) {
	r := extension.NewRegistry()
	require.NoError(t, r.Register("panic", extension.Func(func(context.Context, parser.Properties, string, *extension.Context) (string, error) {
		panic("bad handler")
	})))
	_, err := Resolve(context.Background(), parser.MustParse("{{ panic: 1 }}"), NewDispatcher(r), nil)
	assert.ErrorIs(t, err, ErrExtensionFailure)
}

func TestResolveTimeout(t *testing.T) {
	r := extension.NewRegistry()
	require.NoError(t, r.Register("slow", extension.Func(func(ctx context.Context, _ parser.Properties, _ string, _ *extension.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})))
	require.NoError(t, r.Register("stuck", extension.Func(func(context.Context, parser.Properties, string, *extension.Context) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})))

	d := NewDispatcher(r, WithTimeout(20*time.Millisecond))
	_, err := Resolve(context.Background(), parser.MustParse("{{ slow: 1 }}"), d, nil)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrExtensionFailure)

	_, err = Resolve(context.Background(), parser.MustParse("{{ stuck: 1 }}"), d, nil)
	assert.True(t, IsTimeout(err))

	// a timeout is a failure like any other
	out, err := Resolve(context.Background(), parser.MustParse("a{{ slow(exec.error=warn, exec.timeout=10ms): 1 }}b"), NewDispatcher(r), nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestResolveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	r := extension.NewRegistry()
	require.NoError(t, r.Register("cancel", extension.Func(func(context.Context, parser.Properties, string, *extension.Context) (string, error) {
		calls.Add(1)
		cancel()
		return "x", nil
	})))

	d := NewDispatcher(r, WithOnError(OnErrorWarn))
	out, err := Resolve(ctx, parser.MustParse("{{ cancel: 1 }} {{ cancel: 2 }}"), d, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
	assert.EqualValues(t, 1, calls.Load())
}

func TestResolveMiddleware(t *testing.T) {
	var mu sync.Mutex
	var events []BlockEvent
	record := func(ctx context.Context, event *BlockEvent, next func() error) error {
		err := next()
		mu.Lock()
		events = append(events, *event)
		mu.Unlock()
		return err
	}

	d := NewDispatcher(testRegistry(t), WithMiddleware(record))
	out, err := Resolve(context.Background(), parser.MustParse("{{ upper: a }}{% echo: b %}{{ fail(exec.error=warn): c }}"), d, nil)
	require.NoError(t, err)
	assert.Equal(t, "A ", out)

	require.Len(t, events, 3)
	assert.Equal(t, "upper", events[0].Tag)
	assert.Equal(t, "A ", events[0].Output)
	assert.Equal(t, 1, events[1].Position)
	assert.Error(t, events[2].Error)
	assert.False(t, events[0].End.Before(events[0].Start))
}

func TestResolveOrder(t *testing.T) {
	var order []string
	r := extension.NewRegistry()
	require.NoError(t, r.Register("rec", extension.Func(func(_ context.Context, _ parser.Properties, content string, _ *extension.Context) (string, error) {
		order = append(order, content)
		return content, nil
	})))

	out, err := Resolve(context.Background(), parser.MustParse("{{ rec:1}}{% rec:2%}{{ rec:3}}"), NewDispatcher(r), nil)
	require.NoError(t, err)
	assert.Equal(t, "13", out)
	assert.Equal(t, []string{"1", "2", "3"}, order)
}
