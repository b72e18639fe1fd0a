package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lex := NewLexer(src)
	var toks []Token
	for {
		tok, err := lex.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestLexer_BasicTokens(t *testing.T) {
	toks := lexAll(t, `let x = 2 + 3;`)

	tests := []struct {
		kind   Kind
		lexeme string
	}{
		{Keyword, "let"},
		{Ident, "x"},
		{Punct, "="},
		{Number, "2"},
		{Punct, "+"},
		{Number, "3"},
		{Punct, ";"},
		{EOF, ""},
	}

	require.Len(t, toks, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.kind, toks[i].Kind, "token[%d] kind", i)
		assert.Equal(t, tt.lexeme, toks[i].Lexeme, "token[%d] lexeme", i)
	}
}

func TestLexer_TwoCharPuncts(t *testing.T) {
	toks := lexAll(t, `a -- b -> c .. d ..= e`)
	var puncts []string
	for _, tok := range toks {
		if tok.Kind == Punct {
			puncts = append(puncts, tok.Lexeme)
		}
	}
	assert.Equal(t, []string{"--", "->", "..", "..="}, puncts)
}

func TestLexer_UndirectedEdgeNotDoubleNegation(t *testing.T) {
	toks := lexAll(t, `a -- b`)
	require.Len(t, toks, 4) // a, --, b, EOF
	assert.Equal(t, "--", toks[1].Lexeme)
	assert.Equal(t, Punct, toks[1].Kind)
}

func TestLexer_ImaginaryNumber(t *testing.T) {
	toks := lexAll(t, `3i`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, ImaginaryNumber, toks[0].Kind)
	assert.Equal(t, "3i", toks[0].Lexeme)
}

func TestLexer_StringWithInterpolationMarkerPassedThrough(t *testing.T) {
	toks := lexAll(t, `"hello ${name}!"`)
	require.Equal(t, String, toks[0].Kind)
	assert.Contains(t, toks[0].Lexeme, "${name}")
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\tc\"d"`)
	require.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "a\nb\tc\"d", toks[0].Lexeme)
}

func TestLexer_SkipsCommentsAndWhitespace(t *testing.T) {
	toks := lexAll(t, "// comment\n  let  x = 1 // trailing\n")
	assert.Equal(t, Keyword, toks[0].Kind)
	assert.Equal(t, "let", toks[0].Lexeme)
}

func TestLexer_NoDoubleStarPowerOperator(t *testing.T) {
	toks := lexAll(t, `2**3`)
	// "**" is not a token in this language: expect two separate "*" puncts.
	var puncts []string
	for _, tok := range toks {
		if tok.Kind == Punct {
			puncts = append(puncts, tok.Lexeme)
		}
	}
	assert.Equal(t, []string{"*", "*"}, puncts)
}
