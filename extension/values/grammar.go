package values

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// valuesLexer tokenizes compact row lists.
var valuesLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:''|\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_.$]*`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Semicolon", Pattern: `;`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// table is a list of rows separated by ';' or line breaks. Rows may be
// empty; they are dropped after parsing.
type table struct {
	Pos  lexer.Position
	Rows []*row `parser:"@@ ( ( Semicolon | Newline ) @@ )*"`
}

type row struct {
	Pos    lexer.Position
	Values []*value `parser:"( @@ ( Comma @@ )* )?"`
}

type value struct {
	Pos    lexer.Position
	String *string `parser:"  @String"`
	Number *string `parser:"| @Number"`
	Ident  *string `parser:"| @Ident"`
}

var tableParser = participle.MustBuild[table](
	participle.Lexer(valuesLexer),
	participle.Elide("Whitespace"),
)
