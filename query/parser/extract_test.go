package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractProperties(t *testing.T) {
	s := " a.b =, cc=233,dd='322'\t,e.e=5 )"
	var props Properties
	end, err := ExtractProperties(s, 0, len(s), &props)
	require.NoError(t, err)
	assert.Equal(t, len(s), end)
	assert.Equal(t, ")", s[end-1:end])
	assert.Equal(t, []string{"a.b", "cc", "dd", "e.e"}, props.Keys())
	assert.Equal(t, map[string]string{"a.b": "", "cc": "233", "dd": "322", "e.e": "5"}, props.Map())
}

func TestExtractPropertiesEmpty(t *testing.T) {
	var props Properties

	end, err := ExtractProperties("   ", 0, 3, &props)
	require.NoError(t, err)
	assert.Equal(t, -1, end)

	end, err = ExtractProperties(" ) rest", 0, 7, &props)
	require.NoError(t, err)
	assert.Equal(t, 2, end)
	assert.Zero(t, props.Len())
}

func TestExtractPropertiesQuoting(t *testing.T) {
	s := `x='a, b)', y="c'd", z=' padded ', x = again)`
	var props Properties
	end, err := ExtractProperties(s, 0, len(s), &props)
	require.NoError(t, err)
	assert.Equal(t, len(s), end)
	// duplicates overwrite but keep the first position
	assert.Equal(t, []string{"x", "y", "z"}, props.Keys())
	v, _ := props.Get("x")
	assert.Equal(t, "again", v)
	v, _ = props.Get("y")
	assert.Equal(t, "c'd", v)
	v, _ = props.Get("z")
	assert.Equal(t, " padded ", v)
}

func TestExtractPropertiesTrailingComma(t *testing.T) {
	var props Properties
	end, err := ExtractProperties("a=1, ) x", 0, 8, &props)
	require.NoError(t, err)
	assert.Equal(t, 6, end)
	assert.Equal(t, map[string]string{"a": "1"}, props.Map())
}

func TestExtractPropertiesMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"missing equals", "a, b=1)", ErrMalformedProperty},
		{"missing equals before close", "flag)", ErrMalformedProperty},
		{"empty name", " =1)", ErrMalformedProperty},
		{"missing close", "a=1, b=2", ErrMalformedProperty},
		{"missing close after quote", "a='1'", ErrMalformedProperty},
		{"junk after quote", "a='1' b)", ErrMalformedProperty},
		{"unterminated quote", "a='1)", ErrMalformedLiteral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var props Properties
			_, err := ExtractProperties(tt.input, 0, len(tt.input), &props)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseProperties(t *testing.T) {
	props, err := ParseProperties("a=1, b = 'two words' ,c=${x}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, props.Keys())
	assert.Equal(t, "two words", props.GetOr("b", ""))
	assert.Equal(t, "${x}", props.GetOr("c", ""))

	props, err = ParseProperties("  ")
	require.NoError(t, err)
	assert.Zero(t, props.Len())

	_, err = ParseProperties("a=1) b=2")
	assert.ErrorIs(t, err, ErrMalformedProperty)

	_, err = ParseProperties("a")
	assert.ErrorIs(t, err, ErrMalformedProperty)
}

func TestPropertiesOrder(t *testing.T) {
	p := NewProperties("b", "1", "a", "2", "c", "3")
	p.Set("a", "20")
	p.Delete("b")
	assert.Equal(t, []string{"a", "c"}, p.Keys())

	clone := p.Clone()
	clone.Set("d", "4")
	assert.Equal(t, 2, p.Len())
	assert.False(t, p.Equal(clone))

	sub := NewProperties("cli.path", "/bin/sh", "cli.timeout", "10", "url", "x").WithPrefix("cli.")
	assert.Equal(t, map[string]string{"path": "/bin/sh", "timeout": "10"}, sub.Map())

	assert.Equal(t, `a='20', c='it\'s'`, NewProperties("a", "20", "c", "it's").String())
}
