package parser

import "echo/ast"

// parseObjectDef parses `object Name [extends Parent] ... endobject`,
// whose body is a mix of property assignments, verb definitions, and event
// definitions in any order — mirroring MongooseMoo's parser_obj.go layout
// adapted from MOO's single flat property/verb namespace onto Echo's three
// member kinds (spec.md §4.4 "ObjectDef").
func (p *Parser) parseObjectDef() ast.Expr {
	pos := p.pos()
	p.next() // 'object'
	name := p.expect(TOKEN_IDENTIFIER).Value

	parent := ""
	if p.at(TOKEN_EXTENDS) {
		p.next()
		parent = p.expect(TOKEN_IDENTIFIER).Value
	}

	def := ast.ObjectDef{Base: ast.At(pos), Name: name, Parent: parent}
	for !p.at(TOKEN_ENDOBJECT) && !p.at(TOKEN_EOF) {
		switch p.cur.Type {
		case TOKEN_VERB:
			def.Verbs = append(def.Verbs, p.parseVerbMember())
		case TOKEN_EVENT:
			def.Events = append(def.Events, p.parseEventMember())
		case TOKEN_IDENTIFIER:
			def.Props = append(def.Props, p.parsePropertyMember())
		default:
			p.errorf("unexpected token %s in object body", p.cur.Type)
			p.next()
		}
		if len(p.errors) > 50 {
			break
		}
	}
	p.expect(TOKEN_ENDOBJECT)
	return def
}

func (p *Parser) parsePropertyMember() ast.PropertyMember {
	name := p.expect(TOKEN_IDENTIFIER).Value
	p.expect(TOKEN_ASSIGN)
	value := p.parseExpression(precAssign)
	if p.at(TOKEN_SEMICOLON) {
		p.next()
	}
	return ast.PropertyMember{Name: name, Value: value}
}

// parseVerbMember parses `verb name(params) [dobj, prep, iobj] ... endverb`.
// The bracketed dobj/prep/iobj clause is optional and carries forward the
// lineage's dispatch-signature convention (spec.md §4.5 "Dispatch: verb
// calls"); a verb with no clause matches on name alone.
func (p *Parser) parseVerbMember() ast.VerbMember {
	p.next() // 'verb'
	name := p.expect(TOKEN_IDENTIFIER).Value
	p.expect(TOKEN_LPAREN)
	params := p.parseParamList(TOKEN_RPAREN)
	p.expect(TOKEN_RPAREN)

	var sig ast.VerbSignature
	if p.at(TOKEN_LBRACKET) {
		p.next()
		sig.Dobj = p.expect(TOKEN_IDENTIFIER).Value
		p.expect(TOKEN_COMMA)
		sig.Prep = p.expect(TOKEN_IDENTIFIER).Value
		p.expect(TOKEN_COMMA)
		sig.Iobj = p.expect(TOKEN_IDENTIFIER).Value
		p.expect(TOKEN_RBRACKET)
	}

	start := p.cur.Position.Offset
	body := p.parseBodyUntil(TOKEN_ENDVERB)
	source := p.sourceSlice(start, p.cur.Position.Offset)
	p.expect(TOKEN_ENDVERB)

	return ast.VerbMember{Name: name, Signature: sig, Params: params, Body: body, Source: source}
}

func (p *Parser) parseEventMember() ast.EventMember {
	p.next() // 'event'
	name := p.expect(TOKEN_IDENTIFIER).Value
	p.expect(TOKEN_LPAREN)
	params := p.parseParamList(TOKEN_RPAREN)
	p.expect(TOKEN_RPAREN)

	start := p.cur.Position.Offset
	body := p.parseBodyUntil(TOKEN_ENDEVENT)
	source := p.sourceSlice(start, p.cur.Position.Offset)
	p.expect(TOKEN_ENDEVENT)

	return ast.EventMember{Name: name, Params: params, Body: body, Source: source}
}
