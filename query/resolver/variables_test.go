package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

func TestSubstitute(t *testing.T) {
	v := NewVariables(map[string]string{"table": "users", "n": "10", "empty": ""})

	tests := map[string]string{
		"select * from ${table} limit ${n}": "select * from users limit 10",
		"${table}${table}":                  "usersusers",
		"x${empty}y":                        "xy",
		"keep ${other} and ${ table }":      "keep ${other} and ${ table }",
		"open ${table":                      "open ${table",
		"$table {table}":                    "$table {table}",
		"nested ${${table}}":                "nested ${${table}}",
	}
	for in, want := range tests {
		assert.Equal(t, want, v.Substitute(in), in)
	}

	var none *Variables
	assert.Equal(t, "${a}", none.Substitute("${a}"))
}

func TestVariablesBinding(t *testing.T) {
	v := NewVariables(nil)
	v.Set("a", "1")
	v.Set("a", "2")
	assert.Equal(t, 1, v.Len())

	got, ok := v.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "2", got)

	c := v.Clone()
	c.Set("b", "3")
	assert.Equal(t, 1, v.Len())
	assert.Equal(t, 2, c.Len())

	props := v.SubstituteProperties(parser.NewProperties("x", "${a}", "y", "${b}"))
	assert.Equal(t, map[string]string{"x": "2", "y": "${b}"}, props.Map())
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseOnError(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, OnErrorWarn, p)

	_, err = ParseOnError("retry")
	assert.Error(t, err)

	o, err := ParseWarnOutput("original")
	require.NoError(t, err)
	assert.Equal(t, OutputOriginal, o)

	_, err = ParseWarnOutput("null")
	assert.Error(t, err)

	d, err := ParseTimeout("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = ParseTimeout("2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = ParseTimeout("soon")
	assert.Error(t, err)
}
