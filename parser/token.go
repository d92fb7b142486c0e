// Package parser implements Echo's lexer and recursive-descent parser,
// producing the ast package's tagged-variant tree (spec.md §4.4). Grammar
// source is out of scope per spec.md §1 (it names a rust-sitter grammar as
// external); this package is the concrete tokenizer/parser that has to
// exist for parse_program/eval_source to do anything, reworked from the
// teacher's MOO lexer/parser (token.go, lexer.go, parser.go) idiom onto
// Echo's own keywords: object/endobject, verb/endverb, event/endevent,
// let/const, fn/endfn, if/elseif/else/endif, while/endwhile, for/endfor,
// try/catch/finally/endtry, match/endmatch/case.
package parser

// TokenType tags a lexical token.
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals
	TOKEN_INT
	TOKEN_FLOAT
	TOKEN_STRING
	TOKEN_OBJECT // #123

	// Keywords
	TOKEN_OBJECT_KW
	TOKEN_ENDOBJECT
	TOKEN_EXTENDS
	TOKEN_VERB
	TOKEN_ENDVERB
	TOKEN_EVENT
	TOKEN_ENDEVENT
	TOKEN_LET
	TOKEN_CONST
	TOKEN_FN
	TOKEN_ENDFN
	TOKEN_IF
	TOKEN_ELSEIF
	TOKEN_ELSE
	TOKEN_ENDIF
	TOKEN_WHILE
	TOKEN_ENDWHILE
	TOKEN_FOR
	TOKEN_ENDFOR
	TOKEN_IN
	TOKEN_TRY
	TOKEN_CATCH
	TOKEN_FINALLY
	TOKEN_ENDTRY
	TOKEN_MATCH
	TOKEN_ENDMATCH
	TOKEN_CASE
	TOKEN_RETURN
	TOKEN_BREAK
	TOKEN_CONTINUE
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_NULL
	TOKEN_EMIT

	TOKEN_IDENTIFIER

	// Operators
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_STAR
	TOKEN_SLASH
	TOKEN_PERCENT
	TOKEN_CARET

	TOKEN_EQ
	TOKEN_NE
	TOKEN_LT
	TOKEN_GT
	TOKEN_LE
	TOKEN_GE

	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT

	TOKEN_ASSIGN    // =
	TOKEN_WALRUS    // :=
	TOKEN_FATARROW  // =>
	TOKEN_ELLIPSIS  // ...

	// Delimiters
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_COMMA
	TOKEN_SEMICOLON
	TOKEN_DOT
	TOKEN_COLON
	TOKEN_QUESTION
	TOKEN_UNDERSCORE
)

// Position is a 1-based line/column plus a 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token is one lexical token.
type Token struct {
	Type     TokenType
	Value    string // raw source text (or decoded form for numbers)
	Literal  string // decoded value, for strings
	Position Position
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF: "EOF", TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_INT: "INT", TOKEN_FLOAT: "FLOAT", TOKEN_STRING: "STRING", TOKEN_OBJECT: "OBJECT",
	TOKEN_OBJECT_KW: "object", TOKEN_ENDOBJECT: "endobject", TOKEN_EXTENDS: "extends",
	TOKEN_VERB: "verb", TOKEN_ENDVERB: "endverb", TOKEN_EVENT: "event", TOKEN_ENDEVENT: "endevent",
	TOKEN_LET: "let", TOKEN_CONST: "const", TOKEN_FN: "fn", TOKEN_ENDFN: "endfn",
	TOKEN_IF: "if", TOKEN_ELSEIF: "elseif", TOKEN_ELSE: "else", TOKEN_ENDIF: "endif",
	TOKEN_WHILE: "while", TOKEN_ENDWHILE: "endwhile",
	TOKEN_FOR: "for", TOKEN_ENDFOR: "endfor", TOKEN_IN: "in",
	TOKEN_TRY: "try", TOKEN_CATCH: "catch", TOKEN_FINALLY: "finally", TOKEN_ENDTRY: "endtry",
	TOKEN_MATCH: "match", TOKEN_ENDMATCH: "endmatch", TOKEN_CASE: "case",
	TOKEN_RETURN: "return", TOKEN_BREAK: "break", TOKEN_CONTINUE: "continue",
	TOKEN_TRUE: "true", TOKEN_FALSE: "false", TOKEN_NULL: "null", TOKEN_EMIT: "emit",
	TOKEN_IDENTIFIER: "IDENTIFIER",
	TOKEN_PLUS: "+", TOKEN_MINUS: "-", TOKEN_STAR: "*", TOKEN_SLASH: "/", TOKEN_PERCENT: "%", TOKEN_CARET: "^",
	TOKEN_EQ: "==", TOKEN_NE: "!=", TOKEN_LT: "<", TOKEN_GT: ">", TOKEN_LE: "<=", TOKEN_GE: ">=",
	TOKEN_AND: "&&", TOKEN_OR: "||", TOKEN_NOT: "!",
	TOKEN_ASSIGN: "=", TOKEN_WALRUS: ":=", TOKEN_FATARROW: "=>", TOKEN_ELLIPSIS: "...",
	TOKEN_LPAREN: "(", TOKEN_RPAREN: ")", TOKEN_LBRACE: "{", TOKEN_RBRACE: "}",
	TOKEN_LBRACKET: "[", TOKEN_RBRACKET: "]", TOKEN_COMMA: ",", TOKEN_SEMICOLON: ";",
	TOKEN_DOT: ".", TOKEN_COLON: ":", TOKEN_QUESTION: "?", TOKEN_UNDERSCORE: "_",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"object": TOKEN_OBJECT_KW, "endobject": TOKEN_ENDOBJECT, "extends": TOKEN_EXTENDS,
	"verb": TOKEN_VERB, "endverb": TOKEN_ENDVERB,
	"event": TOKEN_EVENT, "endevent": TOKEN_ENDEVENT,
	"let": TOKEN_LET, "const": TOKEN_CONST,
	"fn": TOKEN_FN, "endfn": TOKEN_ENDFN,
	"if": TOKEN_IF, "elseif": TOKEN_ELSEIF, "else": TOKEN_ELSE, "endif": TOKEN_ENDIF,
	"while": TOKEN_WHILE, "endwhile": TOKEN_ENDWHILE,
	"for": TOKEN_FOR, "endfor": TOKEN_ENDFOR, "in": TOKEN_IN,
	"try": TOKEN_TRY, "catch": TOKEN_CATCH, "finally": TOKEN_FINALLY, "endtry": TOKEN_ENDTRY,
	"match": TOKEN_MATCH, "endmatch": TOKEN_ENDMATCH, "case": TOKEN_CASE,
	"return": TOKEN_RETURN, "break": TOKEN_BREAK, "continue": TOKEN_CONTINUE,
	"true": TOKEN_TRUE, "false": TOKEN_FALSE, "null": TOKEN_NULL, "emit": TOKEN_EMIT,
	"_": TOKEN_UNDERSCORE,
}

// LookupKeyword classifies ident as a keyword token or a plain identifier.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENTIFIER
}
