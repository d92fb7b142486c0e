package parser

import "testing"

func TestLexerBasicTokens(t *testing.T) {
	src := `let x = 1 + 2.5 * "hi" ;`
	want := []TokenType{
		TOKEN_LET, TOKEN_IDENTIFIER, TOKEN_ASSIGN, TOKEN_INT, TOKEN_PLUS,
		TOKEN_FLOAT, TOKEN_STAR, TOKEN_STRING, TOKEN_SEMICOLON, TOKEN_EOF,
	}
	l := NewLexer(src)
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: got %s, want %s", i, tok.Type, w)
		}
	}
}

func TestLexerObjectLiteral(t *testing.T) {
	l := NewLexer("#123 #-1")
	tok := l.NextToken()
	if tok.Type != TOKEN_OBJECT || tok.Value != "123" {
		t.Fatalf("got %+v", tok)
	}
	tok = l.NextToken()
	if tok.Type != TOKEN_OBJECT || tok.Value != "-1" {
		t.Fatalf("got %+v", tok)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	l := NewLexer(`"a\nb\tc\"d"`)
	tok := l.NextToken()
	if tok.Type != TOKEN_STRING {
		t.Fatalf("got %s", tok.Type)
	}
	want := "a\nb\tc\"d"
	if tok.Literal != want {
		t.Fatalf("got %q, want %q", tok.Literal, want)
	}
}

func TestLexerOperators(t *testing.T) {
	cases := []struct {
		src string
		tt  TokenType
	}{
		{"==", TOKEN_EQ}, {"!=", TOKEN_NE}, {"<=", TOKEN_LE}, {">=", TOKEN_GE},
		{"&&", TOKEN_AND}, {"||", TOKEN_OR}, {"=>", TOKEN_FATARROW},
		{":=", TOKEN_WALRUS}, {"...", TOKEN_ELLIPSIS}, {".", TOKEN_DOT},
	}
	for _, c := range cases {
		tok := NewLexer(c.src).NextToken()
		if tok.Type != c.tt {
			t.Errorf("%q: got %s, want %s", c.src, tok.Type, c.tt)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	l := NewLexer("object endobject verb endverb match endmatch _")
	want := []TokenType{
		TOKEN_OBJECT_KW, TOKEN_ENDOBJECT, TOKEN_VERB, TOKEN_ENDVERB,
		TOKEN_MATCH, TOKEN_ENDMATCH, TOKEN_UNDERSCORE,
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: got %s, want %s", i, tok.Type, w)
		}
	}
}
