package filter

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Regex", Pattern: `/(\\.|[^/\\])*/`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[^\s:,"/-][^\s:,"]*`},
	{Name: "Punct", Pattern: `[-:,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[query](
	participle.Lexer(queryLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

// query is the parse tree of a filter expression.
type query struct {
	Clauses []*clauseNode `parser:"@@*"`
}

type clauseNode struct {
	Pos    lexer.Position
	Negate bool         `parser:"@'-'?"`
	Field  string       `parser:"@Ident ':'"`
	Values []*valueNode `parser:"@@ (',' @@)*"`
}

type valueNode struct {
	Regex  *string `parser:"  @Regex"`
	String *string `parser:"| @String"`
	Ident  *string `parser:"| @Ident"`
}
