package sql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer(src)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == END {
			return toks
		}
	}
}

func TestLexerKeywordsAreCaseInsensitive(t *testing.T) {
	toks := lexAll(t, "create TABLE Insert into VALUES select FROM")
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []TokenKind{CREATE, TABLE, INSERT, INTO, VALUES, SELECT, FROM, END}, kinds)
}

func TestLexerIdentifiersAndPunctuation(t *testing.T) {
	toks := lexAll(t, "widgets(id, name)")
	require.Equal(t, Token{Kind: IDENT, Value: "widgets"}, toks[0])
	require.Equal(t, Token{Kind: OPENPAREN, Value: "("}, toks[1])
	require.Equal(t, Token{Kind: IDENT, Value: "id"}, toks[2])
	require.Equal(t, Token{Kind: COMMA, Value: ","}, toks[3])
	require.Equal(t, Token{Kind: IDENT, Value: "name"}, toks[4])
	require.Equal(t, Token{Kind: CLOSEPAREN, Value: ")"}, toks[5])
}

func TestLexerIntegerLiterals(t *testing.T) {
	toks := lexAll(t, "42 -17 0")
	require.Equal(t, Token{Kind: INT_LITERAL, Value: "42"}, toks[0])
	require.Equal(t, Token{Kind: INT_LITERAL, Value: "-17"}, toks[1])
	require.Equal(t, Token{Kind: INT_LITERAL, Value: "0"}, toks[2])
}

func TestLexerQuotedString(t *testing.T) {
	toks := lexAll(t, "'hello world'")
	require.Equal(t, Token{Kind: STRING_LITERAL, Value: "hello world"}, toks[0])
}

func TestLexerQuotedStringWithEscapedQuote(t *testing.T) {
	toks := lexAll(t, "'it''s here'")
	require.Equal(t, Token{Kind: STRING_LITERAL, Value: "it's here"}, toks[0])
}

func TestLexerAsteriskAndSemicolon(t *testing.T) {
	toks := lexAll(t, "*;")
	require.Equal(t, ASTERISK, toks[0].Kind)
	require.Equal(t, SEMICOLON, toks[1].Kind)
}

func TestLexerTypeKeywords(t *testing.T) {
	toks := lexAll(t, "BIGINT INT INTEGER SMALLINT TEXT VARCHAR CHAR STRING BOOLEAN TRUE FALSE NULL")
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []TokenKind{
		BIGINT, INTTYPE, INTEGER, SMALLINT, TEXTTYPE, VARCHAR, CHARTYPE,
		STRINGTYPE, BOOLEAN, TRUE, FALSE, NULLLIT, END,
	}, kinds)
}

func TestLexerInvalidCharacter(t *testing.T) {
	toks := lexAll(t, "@")
	require.Equal(t, INVALID, toks[0].Kind)
}
