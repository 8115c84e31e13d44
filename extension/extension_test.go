package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

type described struct{ Func }

func (described) Description() string { return "echoes content" }

func echo(_ context.Context, _ parser.Properties, content string, _ *Context) (string, error) {
	return content, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("shell", Func(echo)))
	require.NoError(t, r.Register("db", described{Func(echo)}))
	require.NoError(t, r.Register("web", Func(echo)))

	assert.Equal(t, []string{"shell", "db", "web"}, r.Names())

	ext, ok := r.Lookup("db")
	require.True(t, ok)
	out, err := ext.Execute(context.Background(), parser.Properties{}, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	_, ok = r.Lookup("db.mydb")
	assert.False(t, ok)

	assert.Equal(t, "echoes content", r.Describe("db"))
	assert.Empty(t, r.Describe("shell"))
	assert.Empty(t, r.Describe("missing"))
}

func TestRegistryRejects(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("db", Func(echo)))

	assert.ErrorIs(t, r.Register("db", Func(echo)), ErrDuplicate)
	assert.ErrorIs(t, r.Register("", Func(echo)), ErrInvalidName)
	assert.ErrorIs(t, r.Register("db.x", Func(echo)), ErrInvalidName)
	assert.Panics(t, func() { r.MustRegister("db", Func(echo)) })

	var nilRegistry *Registry
	_, ok := nilRegistry.Lookup("db")
	assert.False(t, ok)
	assert.Empty(t, nilRegistry.Names())
}

func TestContext(t *testing.T) {
	var nilCtx *Context
	assert.Empty(t, nilCtx.Var("a"))
	assert.NotNil(t, nilCtx.Log())

	ec := &Context{Lookup: func(name string) (string, bool) {
		if name == "a" {
			return "1", true
		}
		return "", false
	}}
	assert.Equal(t, "1", ec.Var("a"))
	assert.Empty(t, ec.Var("b"))
}
