package parser

import (
	"echo/ast"
	"echo/types"
)

// parseStatement parses one top-level-or-block statement. Most of Echo's
// constructs are themselves expressions (if/while/match all produce a
// value, mirroring MOO's "everything is an expression whose last value
// escapes" convention carried over from MongooseMoo's parser), so this mostly
// delegates into parseExpression and wraps the result; only return/break/
// continue and labeled loops need statement-only handling.
func (p *Parser) parseStatement() ast.Node {
	switch p.cur.Type {
	case TOKEN_SEMICOLON:
		p.next()
		return nil
	case TOKEN_RETURN:
		return p.parseReturn()
	case TOKEN_BREAK:
		return p.parseBreak()
	case TOKEN_CONTINUE:
		return p.parseContinue()
	case TOKEN_IDENTIFIER:
		if p.peek.Type == TOKEN_COLON && (p.peek2.Type == TOKEN_WHILE || p.peek2.Type == TOKEN_FOR) {
			label := p.cur.Value
			p.next() // identifier
			p.next() // ':'
			if p.at(TOKEN_WHILE) {
				return p.parseWhile(label)
			}
			return p.parseFor(label)
		}
		if p.peek.Type == TOKEN_WALRUS {
			pos := p.pos()
			name := p.cur.Value
			p.next() // identifier
			p.next() // ':='
			value := p.parseExpression(precAssign)
			if p.at(TOKEN_SEMICOLON) {
				p.next()
			}
			return ast.LocalAssignment{Base: ast.At(pos), Name: name, Value: value}
		}
	}

	pos := p.pos()
	expr := p.parseExpression(precLowest)
	if p.at(TOKEN_SEMICOLON) {
		p.next()
	}
	switch expr.(type) {
	case ast.If, ast.While, ast.For, ast.Try, ast.Match, ast.ObjectDef, ast.Lambda, ast.Emit,
		ast.LocalAssignment, ast.ConstAssignment, ast.Assignment, ast.DestructuringAssignment:
		return expr
	}
	return ast.ExpressionStatement{Base: ast.At(pos), Expr: expr}
}

func (p *Parser) parseBodyUntil(terms ...TokenType) *ast.Block {
	pos := p.pos()
	blk := &ast.Block{Base: ast.At(pos)}
	for !p.atAny(terms...) && !p.at(TOKEN_EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			blk.Statements = append(blk.Statements, stmt)
		}
		if len(p.errors) > 50 {
			break
		}
	}
	return blk
}

func (p *Parser) atAny(tts ...TokenType) bool {
	for _, t := range tts {
		if p.cur.Type == t {
			return true
		}
	}
	return false
}

func (p *Parser) parseReturn() ast.Node {
	pos := p.pos()
	p.next() // 'return'
	var value ast.Expr
	if !p.atReturnBoundary() {
		value = p.parseExpression(precLowest)
	}
	if p.at(TOKEN_SEMICOLON) {
		p.next()
	}
	return ast.Return{Base: ast.At(pos), Value: value}
}

func (p *Parser) atReturnBoundary() bool {
	return p.atAny(TOKEN_SEMICOLON, TOKEN_EOF, TOKEN_ENDIF, TOKEN_ELSE, TOKEN_ELSEIF,
		TOKEN_ENDWHILE, TOKEN_ENDFOR, TOKEN_ENDTRY, TOKEN_CATCH, TOKEN_FINALLY,
		TOKEN_ENDMATCH, TOKEN_CASE, TOKEN_ENDVERB, TOKEN_ENDEVENT, TOKEN_ENDFN, TOKEN_ENDOBJECT)
}

func (p *Parser) parseBreak() ast.Node {
	pos := p.pos()
	p.next() // 'break'
	label := ""
	if p.at(TOKEN_IDENTIFIER) {
		label = p.cur.Value
		p.next()
	}
	if p.at(TOKEN_SEMICOLON) {
		p.next()
	}
	return ast.Break{Base: ast.At(pos), Label: label}
}

func (p *Parser) parseContinue() ast.Node {
	pos := p.pos()
	p.next() // 'continue'
	label := ""
	if p.at(TOKEN_IDENTIFIER) {
		label = p.cur.Value
		p.next()
	}
	if p.at(TOKEN_SEMICOLON) {
		p.next()
	}
	return ast.Continue{Base: ast.At(pos), Label: label}
}

// parseLocalAssignExpr parses `let name = expr` (or destructuring form
// `let [a, b, ...rest] = expr`), the bare-scope-creating binding form
// (spec.md §4.5 "Destructuring semantics").
func (p *Parser) parseLocalAssignExpr() ast.Expr {
	pos := p.pos()
	p.next() // 'let'
	if p.at(TOKEN_LBRACKET) {
		return p.parseDestructuring(pos)
	}
	name := p.expect(TOKEN_IDENTIFIER).Value
	p.expect(TOKEN_ASSIGN)
	value := p.parseExpression(precAssign)
	return ast.LocalAssignment{Base: ast.At(pos), Name: name, Value: value}
}

func (p *Parser) parseConstAssignExpr() ast.Expr {
	pos := p.pos()
	p.next() // 'const'
	name := p.expect(TOKEN_IDENTIFIER).Value
	p.expect(TOKEN_ASSIGN)
	value := p.parseExpression(precAssign)
	return ast.ConstAssignment{Base: ast.At(pos), Name: name, Value: value}
}

func (p *Parser) parseDestructuring(pos ast.Pos) ast.Expr {
	p.expect(TOKEN_LBRACKET)
	var targets []ast.DestructuringTarget
	for !p.at(TOKEN_RBRACKET) && !p.at(TOKEN_EOF) {
		if p.at(TOKEN_ELLIPSIS) {
			p.next()
			name := p.expect(TOKEN_IDENTIFIER).Value
			targets = append(targets, ast.DestructuringTarget{Kind: ast.DestructRest, Name: name})
		} else {
			name := p.expect(TOKEN_IDENTIFIER).Value
			if p.at(TOKEN_ASSIGN) {
				p.next()
				def := p.parseExpression(precAssign)
				targets = append(targets, ast.DestructuringTarget{Kind: ast.DestructOptional, Name: name, Default: def})
			} else {
				targets = append(targets, ast.DestructuringTarget{Kind: ast.DestructSimple, Name: name})
			}
		}
		if p.at(TOKEN_COMMA) {
			p.next()
		}
	}
	p.expect(TOKEN_RBRACKET)
	p.expect(TOKEN_ASSIGN)
	value := p.parseExpression(precAssign)
	return ast.DestructuringAssignment{Base: ast.At(pos), Targets: targets, Value: value}
}

func (p *Parser) parseIf() ast.Expr {
	pos := p.pos()
	p.next() // 'if'
	cond := p.parseExpression(precLowest)
	then := p.parseBodyUntil(TOKEN_ELSEIF, TOKEN_ELSE, TOKEN_ENDIF)

	var elseifs []ast.ElseIfClause
	for p.at(TOKEN_ELSEIF) {
		p.next()
		c := p.parseExpression(precLowest)
		b := p.parseBodyUntil(TOKEN_ELSEIF, TOKEN_ELSE, TOKEN_ENDIF)
		elseifs = append(elseifs, ast.ElseIfClause{Condition: c, Body: b})
	}

	var elseBody ast.Node
	if p.at(TOKEN_ELSE) {
		p.next()
		elseBody = p.parseBodyUntil(TOKEN_ENDIF)
	}
	p.expect(TOKEN_ENDIF)
	return ast.If{Base: ast.At(pos), Condition: cond, Then: then, ElseIfs: elseifs, Else: elseBody}
}

func (p *Parser) parseWhile(label string) ast.Expr {
	pos := p.pos()
	p.next() // 'while'
	cond := p.parseExpression(precLowest)
	body := p.parseBodyUntil(TOKEN_ENDWHILE)
	p.expect(TOKEN_ENDWHILE)
	return ast.While{Base: ast.At(pos), Label: label, Condition: cond, Body: body}
}

func (p *Parser) parseFor(label string) ast.Expr {
	pos := p.pos()
	p.next() // 'for'
	name := p.expect(TOKEN_IDENTIFIER).Value
	p.expect(TOKEN_IN)
	iter := p.parseExpression(precLowest)
	body := p.parseBodyUntil(TOKEN_ENDFOR)
	p.expect(TOKEN_ENDFOR)
	return ast.For{Base: ast.At(pos), Label: label, Var: name, Iter: iter, Body: body}
}

func (p *Parser) parseTry() ast.Expr {
	pos := p.pos()
	p.next() // 'try'
	body := p.parseBodyUntil(TOKEN_CATCH, TOKEN_FINALLY, TOKEN_ENDTRY)

	var catch *ast.Catch
	if p.at(TOKEN_CATCH) {
		p.next()
		errVar := ""
		if p.at(TOKEN_IDENTIFIER) {
			errVar = p.cur.Value
			p.next()
		}
		cb := p.parseBodyUntil(TOKEN_FINALLY, TOKEN_ENDTRY)
		catch = &ast.Catch{ErrorVar: errVar, Body: cb}
	}

	var fin *ast.Finally
	if p.at(TOKEN_FINALLY) {
		p.next()
		fb := p.parseBodyUntil(TOKEN_ENDTRY)
		fin = &ast.Finally{Body: fb}
	}

	p.expect(TOKEN_ENDTRY)
	return ast.Try{Base: ast.At(pos), Body: body, Catch: catch, Finally: fin}
}

func (p *Parser) parseMatch() ast.Expr {
	pos := p.pos()
	p.next() // 'match'
	subject := p.parseExpression(precLowest)

	var arms []ast.MatchArm
	for p.at(TOKEN_CASE) {
		p.next()
		pattern := p.parseMatchPattern()
		var guard ast.Expr
		if p.at(TOKEN_IF) {
			p.next()
			guard = p.parseExpression(precLowest)
		}
		p.expect(TOKEN_FATARROW)
		body := p.parseBodyUntil(TOKEN_CASE, TOKEN_ENDMATCH)
		arms = append(arms, ast.MatchArm{Pattern: pattern, Guard: guard, Body: body})
	}
	p.expect(TOKEN_ENDMATCH)
	return ast.Match{Base: ast.At(pos), Expr: subject, Arms: arms}
}

func (p *Parser) parseMatchPattern() ast.MatchPattern {
	switch p.cur.Type {
	case TOKEN_UNDERSCORE:
		p.next()
		return ast.MatchPattern{Kind: ast.PatternWildcard}
	case TOKEN_IDENTIFIER:
		name := p.cur.Value
		p.next()
		return ast.MatchPattern{Kind: ast.PatternIdentifier, Name: name}
	default:
		lit := p.parseUnary()
		return ast.MatchPattern{Kind: ast.PatternLiteral, Literal: literalValue(lit)}
	}
}

func (p *Parser) parseEmit() ast.Expr {
	pos := p.pos()
	p.next() // 'emit'
	name := p.expect(TOKEN_IDENTIFIER).Value
	var args []ast.Expr
	if p.at(TOKEN_LPAREN) {
		p.next()
		args = p.parseExprList(TOKEN_RPAREN)
		p.expect(TOKEN_RPAREN)
	}
	return ast.Emit{Base: ast.At(pos), Event: name, Args: args}
}

func (p *Parser) parseLambda() ast.Expr {
	pos := p.pos()
	p.next() // 'fn'
	p.expect(TOKEN_LPAREN)
	params := p.parseParamList(TOKEN_RPAREN)
	p.expect(TOKEN_RPAREN)

	if p.at(TOKEN_FATARROW) {
		p.next()
		expr := p.parseExpression(precAssign)
		body := ast.ExpressionStatement{Base: ast.At(expr.Position()), Expr: expr}
		return ast.Lambda{Base: ast.At(pos), Params: params, Body: body}
	}
	body := p.parseBodyUntil(TOKEN_ENDFN)
	p.expect(TOKEN_ENDFN)
	return ast.Lambda{Base: ast.At(pos), Params: params, Body: body}
}

func (p *Parser) parseParamList(end TokenType) []ast.Param {
	var params []ast.Param
	for !p.at(end) && !p.at(TOKEN_EOF) {
		if p.at(TOKEN_ELLIPSIS) {
			p.next()
			name := p.expect(TOKEN_IDENTIFIER).Value
			params = append(params, ast.Param{Kind: ast.DestructRest, Name: name})
		} else {
			name := p.expect(TOKEN_IDENTIFIER).Value
			if p.at(TOKEN_ASSIGN) {
				p.next()
				def := p.parseExpression(precAssign)
				params = append(params, ast.Param{Kind: ast.DestructOptional, Name: name, Default: def})
			} else {
				params = append(params, ast.Param{Kind: ast.DestructSimple, Name: name})
			}
		}
		if p.at(TOKEN_COMMA) {
			p.next()
		}
	}
	return params
}

func (p *Parser) parseListLiteral() ast.Expr {
	pos := p.pos()
	p.expect(TOKEN_LBRACKET)
	elems := p.parseExprList(TOKEN_RBRACKET)
	p.expect(TOKEN_RBRACKET)
	return ast.List{Base: ast.At(pos), Elements: elems}
}

func (p *Parser) parseMapLiteral() ast.Expr {
	pos := p.pos()
	p.expect(TOKEN_LBRACE)
	var entries []ast.MapEntry
	for !p.at(TOKEN_RBRACE) && !p.at(TOKEN_EOF) {
		var key string
		if p.at(TOKEN_STRING) {
			key = p.cur.Literal
			p.next()
		} else {
			key = p.expect(TOKEN_IDENTIFIER).Value
		}
		p.expect(TOKEN_COLON)
		val := p.parseExpression(precAssign)
		entries = append(entries, ast.MapEntry{Key: key, Value: val})
		if p.at(TOKEN_COMMA) {
			p.next()
		}
	}
	p.expect(TOKEN_RBRACE)
	return ast.Map{Base: ast.At(pos), Entries: entries}
}

// literalValue folds a constant-expression pattern (number, string,
// boolean, null, unary-minus-number) into the types.Value a MatchPattern
// compares against; anything richer belongs in a guard, not a pattern.
func literalValue(e ast.Expr) types.Value {
	switch v := e.(type) {
	case ast.NumberLit:
		return types.NewInt(v.Value)
	case ast.FloatLit:
		return types.NewFloat(v.Value)
	case ast.StringLit:
		return types.NewString(v.Value)
	case ast.BooleanLit:
		return types.NewBool(v.Value)
	case ast.NullLit:
		return types.Null
	case ast.UnaryExpr:
		if v.Op == ast.OpUnaryMinus {
			switch n := v.Operand.(type) {
			case ast.NumberLit:
				return types.NewInt(-n.Value)
			case ast.FloatLit:
				return types.NewFloat(-n.Value)
			}
		}
	}
	return types.Null
}
