// Package frontend implements a minimal lexer and Pratt parser producing
// the ast package's node types. It is a collaborator for cmd/achronyme,
// not part of the specified execution core: just enough surface syntax to
// drive every ast node kind the compiler consumes.
package frontend

// Kind classifies a lexical token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	Number
	ImaginaryNumber
	String
	Punct
)

// Token is one lexical atom.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Col    int
}

var keywords = map[string]bool{
	"let": true, "mut": true, "if": true, "else": true, "while": true,
	"for": true, "in": true, "fn": true, "gen": true, "async": true,
	"return": true, "break": true, "continue": true, "match": true,
	"try": true, "catch": true, "throw": true, "import": true, "export": true,
	"as": true, "from": true, "type": true, "true": true, "false": true,
	"null": true, "do": true, "generate": true, "yield": true, "rec": true,
	"not": true, "piecewise": true, "case": true, "default": true,
}
