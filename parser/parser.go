package parser

import (
	"fmt"

	"echo/ast"
	"echo/types"
)

// ParseError is returned (wrapped in types.EvalError via Parse) when source
// text doesn't conform to the grammar.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Parser is a recursive-descent/Pratt parser producing an ast.Program from
// Echo source, reworked from MongooseMoo's lexer+Pratt-parser idiom
// (parser/token.go, parser/lexer.go, parser/parser.go) onto Echo's own
// grammar rather than MOO's.
type Parser struct {
	lex *Lexer
	src string

	cur   Token
	peek  Token
	peek2 Token

	errors []*ParseError
}

// NewParser returns a Parser reading from src.
func NewParser(src string) *Parser {
	p := &Parser{lex: NewLexer(src), src: src}
	p.next()
	p.next()
	p.next()
	return p
}

// sourceSlice returns the raw source text between two byte offsets, used to
// populate VerbMember.Source/EventMember.Source (the persisted form objstore
// stores instead of the parsed body — see objstore/encode.go).
func (p *Parser) sourceSlice(start, end int) string {
	if start < 0 || end > len(p.src) || start > end {
		return ""
	}
	return p.src[start:end]
}

// Parse lexes and parses src into a Program, the façade-level entry point
// backing parse_program (spec.md §1, SPEC_FULL.md §1).
func Parse(src string) (*ast.Program, error) {
	p := NewParser(src)
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		return nil, types.ErrParse("%s", p.errors[0].Error())
	}
	return prog, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.peek2
	p.peek2 = p.lex.NextToken()
}

func (p *Parser) pos() ast.Pos { return ast.NewPos(p.cur.Position.Line, p.cur.Position.Column) }

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{Pos: p.cur.Position, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(tt TokenType) Token {
	if p.cur.Type != tt {
		p.errorf("expected %s, got %s (%q)", tt, p.cur.Type, p.cur.Value)
	}
	tok := p.cur
	p.next()
	return tok
}

func (p *Parser) at(tt TokenType) bool { return p.cur.Type == tt }

// ParseProgram parses the whole input as a sequence of top-level
// statements.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{Base: ast.At(p.pos())}
	for !p.at(TOKEN_EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		if len(p.errors) > 50 {
			break
		}
	}
	return prog
}

// ---- Pratt expression parser ------------------------------------------

type precedence int

const (
	precLowest precedence = iota
	precAssign
	precOr
	precAnd
	precEquality
	precComparison
	precAdditive
	precMultiplicative
	precPower
	precUnary
	precPostfix
)

func (p *Parser) precedenceOf(tt TokenType) precedence {
	switch tt {
	case TOKEN_ASSIGN:
		return precAssign
	case TOKEN_OR:
		return precOr
	case TOKEN_AND:
		return precAnd
	case TOKEN_EQ, TOKEN_NE:
		return precEquality
	case TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return precComparison
	case TOKEN_PLUS, TOKEN_MINUS:
		return precAdditive
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_PERCENT:
		return precMultiplicative
	case TOKEN_CARET:
		return precPower
	case TOKEN_LPAREN, TOKEN_LBRACKET, TOKEN_DOT:
		return precPostfix
	default:
		return precLowest
	}
}

// parseExpression parses an expression at minBp or higher binding power.
func (p *Parser) parseExpression(minBp precedence) ast.Expr {
	left := p.parseUnary()

	for {
		opPrec := p.precedenceOf(p.cur.Type)
		if opPrec <= minBp || opPrec == precLowest {
			break
		}
		switch p.cur.Type {
		case TOKEN_LPAREN:
			left = p.parseCall(left)
		case TOKEN_LBRACKET:
			left = p.parseIndex(left)
		case TOKEN_DOT:
			left = p.parseDotAccess(left)
		case TOKEN_ASSIGN:
			left = p.parseAssign(left)
		default:
			left = p.parseBinary(left, opPrec)
		}
	}
	return left
}

func binOpFor(tt TokenType) (ast.BinOp, bool) {
	switch tt {
	case TOKEN_PLUS:
		return ast.OpAdd, true
	case TOKEN_MINUS:
		return ast.OpSubtract, true
	case TOKEN_STAR:
		return ast.OpMultiply, true
	case TOKEN_SLASH:
		return ast.OpDivide, true
	case TOKEN_PERCENT:
		return ast.OpModulo, true
	case TOKEN_CARET:
		return ast.OpPower, true
	case TOKEN_EQ:
		return ast.OpEqual, true
	case TOKEN_NE:
		return ast.OpNotEqual, true
	case TOKEN_LT:
		return ast.OpLess, true
	case TOKEN_GT:
		return ast.OpGreater, true
	case TOKEN_LE:
		return ast.OpLessEqual, true
	case TOKEN_GE:
		return ast.OpGreaterEqual, true
	case TOKEN_AND:
		return ast.OpAnd, true
	case TOKEN_OR:
		return ast.OpOr, true
	default:
		return 0, false
	}
}

func (p *Parser) parseBinary(left ast.Expr, opPrec precedence) ast.Expr {
	pos := p.pos()
	op, ok := binOpFor(p.cur.Type)
	if !ok {
		p.errorf("unexpected token %s in expression", p.cur.Type)
		p.next()
		return left
	}
	p.next()
	// OpPower is right-associative; everything else left-associative.
	nextMin := opPrec
	if op == ast.OpPower {
		nextMin--
	}
	right := p.parseExpression(nextMin)
	return ast.BinaryExpr{Base: ast.At(pos), Op: op, Left: left, Right: right}
}

func (p *Parser) parseAssign(left ast.Expr) ast.Expr {
	pos := p.pos()
	p.next() // '='
	value := p.parseExpression(precAssign - 1)
	lv := exprToLValue(left)
	if lv == nil {
		p.errorf("invalid assignment target")
		return left
	}
	return ast.Assignment{Base: ast.At(pos), Target: lv, Value: value}
}

func exprToLValue(e ast.Expr) ast.LValue {
	switch v := e.(type) {
	case ast.Identifier:
		return ast.IdentifierLValue{Base: v.Base, Name: v.Name}
	case ast.PropertyAccess:
		return ast.PropertyLValue{Base: v.Base, Object: v.Object, Property: v.Property}
	case ast.Index:
		return ast.IndexLValue{Base: v.Base, Target: v.Target, Index: v.Index}
	default:
		return nil
	}
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.pos()
	switch p.cur.Type {
	case TOKEN_MINUS:
		p.next()
		return ast.UnaryExpr{Base: ast.At(pos), Op: ast.OpUnaryMinus, Operand: p.parseExpression(precUnary)}
	case TOKEN_PLUS:
		p.next()
		return ast.UnaryExpr{Base: ast.At(pos), Op: ast.OpUnaryPlus, Operand: p.parseExpression(precUnary)}
	case TOKEN_NOT:
		p.next()
		return ast.UnaryExpr{Base: ast.At(pos), Op: ast.OpNot, Operand: p.parseExpression(precUnary)}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parseCall(callee ast.Expr) ast.Expr {
	pos := p.pos()
	p.next() // '('
	args := p.parseExprList(TOKEN_RPAREN)
	p.expect(TOKEN_RPAREN)

	switch fn := callee.(type) {
	case ast.Identifier:
		return ast.FunctionCall{Base: ast.At(pos), Name: fn.Name, Args: args}
	case ast.PropertyAccess:
		return ast.MethodCall{Base: ast.At(pos), Object: fn.Object, Method: fn.Property, Args: args}
	default:
		return ast.Call{Base: ast.At(pos), Func: callee, Args: args}
	}
}

func (p *Parser) parseIndex(target ast.Expr) ast.Expr {
	pos := p.pos()
	p.next() // '['
	idx := p.parseExpression(precLowest)
	p.expect(TOKEN_RBRACKET)
	return ast.Index{Base: ast.At(pos), Target: target, Index: idx}
}

func (p *Parser) parseDotAccess(obj ast.Expr) ast.Expr {
	pos := p.pos()
	p.next() // '.'
	name := p.expect(TOKEN_IDENTIFIER).Value
	return ast.PropertyAccess{Base: ast.At(pos), Object: obj, Property: name}
}

func (p *Parser) parseExprList(end TokenType) []ast.Expr {
	var out []ast.Expr
	if p.at(end) {
		return out
	}
	out = append(out, p.parseExpression(precLowest))
	for p.at(TOKEN_COMMA) {
		p.next()
		if p.at(end) {
			break
		}
		out = append(out, p.parseExpression(precLowest))
	}
	return out
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.pos()
	switch p.cur.Type {
	case TOKEN_INT:
		v := p.cur.Value
		p.next()
		return ast.NumberLit{Base: ast.At(pos), Value: parseInt(v)}
	case TOKEN_FLOAT:
		v := p.cur.Value
		p.next()
		return ast.FloatLit{Base: ast.At(pos), Value: parseFloat(v)}
	case TOKEN_STRING:
		v := p.cur.Literal
		p.next()
		return ast.StringLit{Base: ast.At(pos), Value: v}
	case TOKEN_TRUE:
		p.next()
		return ast.BooleanLit{Base: ast.At(pos), Value: true}
	case TOKEN_FALSE:
		p.next()
		return ast.BooleanLit{Base: ast.At(pos), Value: false}
	case TOKEN_NULL:
		p.next()
		return ast.NullLit{Base: ast.At(pos)}
	case TOKEN_OBJECT:
		v := p.cur.Value
		p.next()
		return ast.ObjectRef{Base: ast.At(pos), Number: parseInt(v)}
	case TOKEN_IDENTIFIER:
		name := p.cur.Value
		p.next()
		return ast.Identifier{Base: ast.At(pos), Name: name}
	case TOKEN_LPAREN:
		p.next()
		e := p.parseExpression(precLowest)
		p.expect(TOKEN_RPAREN)
		return e
	case TOKEN_LBRACKET:
		return p.parseListLiteral()
	case TOKEN_LBRACE:
		return p.parseMapLiteral()
	case TOKEN_FN:
		return p.parseLambda()
	case TOKEN_OBJECT_KW:
		return p.parseObjectDef()
	case TOKEN_EMIT:
		return p.parseEmit()
	case TOKEN_LET:
		return p.parseLocalAssignExpr()
	case TOKEN_CONST:
		return p.parseConstAssignExpr()
	case TOKEN_IF:
		return p.parseIf()
	case TOKEN_WHILE:
		return p.parseWhile("")
	case TOKEN_FOR:
		return p.parseFor("")
	case TOKEN_TRY:
		return p.parseTry()
	case TOKEN_MATCH:
		return p.parseMatch()
	default:
		p.errorf("unexpected token %s (%q)", p.cur.Type, p.cur.Value)
		p.next()
		return ast.NullLit{Base: ast.At(pos)}
	}
}
