package parser

import (
	"testing"

	"echo/ast"
)

func parseOne(t *testing.T, src string) ast.Node {
	t.Helper()
	p := NewParser(src)
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		t.Fatalf("parse errors for %q: %v", src, p.errors[0])
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	return prog.Statements[0]
}

func TestParseArithmeticPrecedence(t *testing.T) {
	stmt := parseOne(t, "1 + 2 * 3;")
	es, ok := stmt.(ast.ExpressionStatement)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	bin, ok := es.Expr.(ast.BinaryExpr)
	if !ok || bin.Op != ast.OpAdd {
		t.Fatalf("expected top-level add, got %#v", es.Expr)
	}
	right, ok := bin.Right.(ast.BinaryExpr)
	if !ok || right.Op != ast.OpMultiply {
		t.Fatalf("expected multiply nested on the right, got %#v", bin.Right)
	}
}

func TestParsePowerIsRightAssociative(t *testing.T) {
	stmt := parseOne(t, "2 ^ 3 ^ 2;")
	es := stmt.(ast.ExpressionStatement)
	bin := es.Expr.(ast.BinaryExpr)
	if bin.Op != ast.OpPower {
		t.Fatalf("got %#v", es.Expr)
	}
	if _, ok := bin.Right.(ast.BinaryExpr); !ok {
		t.Fatalf("expected right-associative nesting, got %#v", bin.Right)
	}
	if _, ok := bin.Left.(ast.NumberLit); !ok {
		t.Fatalf("expected flat left operand, got %#v", bin.Left)
	}
}

func TestParseLocalAssignment(t *testing.T) {
	stmt := parseOne(t, "let x = 5;")
	la, ok := stmt.(ast.LocalAssignment)
	if !ok || la.Name != "x" {
		t.Fatalf("got %#v", stmt)
	}
}

func TestParseWalrusIsLocalAssignment(t *testing.T) {
	stmt := parseOne(t, "x := 5;")
	la, ok := stmt.(ast.LocalAssignment)
	if !ok || la.Name != "x" {
		t.Fatalf("got %#v", stmt)
	}
}

func TestParsePropertyAssignment(t *testing.T) {
	stmt := parseOne(t, "a.b = 1;")
	assign, ok := stmt.(ast.Assignment)
	if !ok {
		t.Fatalf("got %#v", stmt)
	}
	plv, ok := assign.Target.(ast.PropertyLValue)
	if !ok || plv.Property != "b" {
		t.Fatalf("got %#v", assign.Target)
	}
}

func TestParseMethodAndFunctionCalls(t *testing.T) {
	stmt := parseOne(t, "player.tell(\"hi\");")
	es := stmt.(ast.ExpressionStatement)
	mc, ok := es.Expr.(ast.MethodCall)
	if !ok || mc.Method != "tell" || len(mc.Args) != 1 {
		t.Fatalf("got %#v", es.Expr)
	}

	stmt = parseOne(t, "length(x);")
	es = stmt.(ast.ExpressionStatement)
	fc, ok := es.Expr.(ast.FunctionCall)
	if !ok || fc.Name != "length" {
		t.Fatalf("got %#v", es.Expr)
	}
}

func TestParseIfElseIfElse(t *testing.T) {
	src := `
if x == 1
  return 1;
elseif x == 2
  return 2;
else
  return 3;
endif
`
	stmt := parseOne(t, src)
	iff, ok := stmt.(ast.If)
	if !ok {
		t.Fatalf("got %#v", stmt)
	}
	if len(iff.ElseIfs) != 1 {
		t.Fatalf("expected 1 elseif, got %d", len(iff.ElseIfs))
	}
	if iff.Else == nil {
		t.Fatalf("expected else body")
	}
}

func TestParseWhileWithLabelAndBreak(t *testing.T) {
	src := `
outer: while true
  break outer;
endwhile
`
	stmt := parseOne(t, src)
	w, ok := stmt.(ast.While)
	if !ok || w.Label != "outer" {
		t.Fatalf("got %#v", stmt)
	}
	blk := w.Body.(*ast.Block)
	if len(blk.Statements) != 1 {
		t.Fatalf("got %d statements", len(blk.Statements))
	}
	brk, ok := blk.Statements[0].(ast.Break)
	if !ok || brk.Label != "outer" {
		t.Fatalf("got %#v", blk.Statements[0])
	}
}

func TestParseForIn(t *testing.T) {
	stmt := parseOne(t, "for item in list endfor")
	f, ok := stmt.(ast.For)
	if !ok || f.Var != "item" {
		t.Fatalf("got %#v", stmt)
	}
}

func TestParseTryCatchFinally(t *testing.T) {
	src := `
try
  return 1;
catch e
  return 2;
finally
  return 3;
endtry
`
	stmt := parseOne(t, src)
	tr, ok := stmt.(ast.Try)
	if !ok {
		t.Fatalf("got %#v", stmt)
	}
	if tr.Catch == nil || tr.Catch.ErrorVar != "e" {
		t.Fatalf("expected catch binding e, got %#v", tr.Catch)
	}
	if tr.Finally == nil {
		t.Fatalf("expected finally clause")
	}
}

func TestParseMatchWithGuardAndWildcard(t *testing.T) {
	src := `
match x
case 1 => return "one";
case n if n > 10 => return "big";
case _ => return "other";
endmatch
`
	stmt := parseOne(t, src)
	m, ok := stmt.(ast.Match)
	if !ok || len(m.Arms) != 3 {
		t.Fatalf("got %#v", stmt)
	}
	if m.Arms[0].Pattern.Kind != ast.PatternLiteral {
		t.Fatalf("expected literal pattern, got %#v", m.Arms[0].Pattern)
	}
	if m.Arms[1].Pattern.Kind != ast.PatternIdentifier || m.Arms[1].Guard == nil {
		t.Fatalf("expected guarded identifier pattern, got %#v", m.Arms[1])
	}
	if m.Arms[2].Pattern.Kind != ast.PatternWildcard {
		t.Fatalf("expected wildcard pattern, got %#v", m.Arms[2].Pattern)
	}
}

func TestParseDestructuringWithRestAndDefault(t *testing.T) {
	stmt := parseOne(t, "let [a, b = 2, ...rest] = list;")
	da, ok := stmt.(ast.DestructuringAssignment)
	if !ok || len(da.Targets) != 3 {
		t.Fatalf("got %#v", stmt)
	}
	if da.Targets[0].Kind != ast.DestructSimple {
		t.Fatalf("got %#v", da.Targets[0])
	}
	if da.Targets[1].Kind != ast.DestructOptional || da.Targets[1].Default == nil {
		t.Fatalf("got %#v", da.Targets[1])
	}
	if da.Targets[2].Kind != ast.DestructRest || da.Targets[2].Name != "rest" {
		t.Fatalf("got %#v", da.Targets[2])
	}
}

func TestParseLambdaExpressionAndBlockForms(t *testing.T) {
	stmt := parseOne(t, "let f = fn(x) => x + 1;")
	la := stmt.(ast.LocalAssignment)
	lam, ok := la.Value.(ast.Lambda)
	if !ok || len(lam.Params) != 1 {
		t.Fatalf("got %#v", la.Value)
	}
	if _, ok := lam.Body.(ast.ExpressionStatement); !ok {
		t.Fatalf("expected expression body, got %#v", lam.Body)
	}

	stmt = parseOne(t, "let g = fn(x) return x; endfn;")
	la = stmt.(ast.LocalAssignment)
	lam, ok = la.Value.(ast.Lambda)
	if !ok {
		t.Fatalf("got %#v", la.Value)
	}
	if _, ok := lam.Body.(*ast.Block); !ok {
		t.Fatalf("expected block body, got %#v", lam.Body)
	}
}

func TestParseEmitWithArgs(t *testing.T) {
	stmt := parseOne(t, `emit room_changed(player, "north");`)
	em, ok := stmt.(ast.Emit)
	if !ok || em.Event != "room_changed" || len(em.Args) != 2 {
		t.Fatalf("got %#v", stmt)
	}
}

func TestParseObjectDefWithVerbEventAndProperty(t *testing.T) {
	src := `
object Room extends Container
  description = "a dark room";

  verb look() [this, none, none]
    player.tell(description);
  endverb

  event entered(who)
    emit notify(who);
  endevent
endobject
`
	stmt := parseOne(t, src)
	def, ok := stmt.(ast.ObjectDef)
	if !ok {
		t.Fatalf("got %#v", stmt)
	}
	if def.Name != "Room" || def.Parent != "Container" {
		t.Fatalf("got name=%q parent=%q", def.Name, def.Parent)
	}
	if len(def.Props) != 1 || def.Props[0].Name != "description" {
		t.Fatalf("got %#v", def.Props)
	}
	if len(def.Verbs) != 1 || def.Verbs[0].Name != "look" {
		t.Fatalf("got %#v", def.Verbs)
	}
	if def.Verbs[0].Signature.Dobj != "this" || def.Verbs[0].Signature.Iobj != "none" {
		t.Fatalf("got %#v", def.Verbs[0].Signature)
	}
	if def.Verbs[0].Source == "" {
		t.Fatalf("expected non-empty verb source text")
	}
	if len(def.Events) != 1 || def.Events[0].Name != "entered" {
		t.Fatalf("got %#v", def.Events)
	}
}

func TestParseIndexAssignment(t *testing.T) {
	stmt := parseOne(t, "items[0] = x;")
	assign, ok := stmt.(ast.Assignment)
	if !ok {
		t.Fatalf("got %#v", stmt)
	}
	if _, ok := assign.Target.(ast.IndexLValue); !ok {
		t.Fatalf("expected index lvalue, got %#v", assign.Target)
	}
}

func TestParseCollectionLiterals(t *testing.T) {
	stmt := parseOne(t, `let x = [1, 2, {a: 1, "b": 2}];`)
	la := stmt.(ast.LocalAssignment)
	list, ok := la.Value.(ast.List)
	if !ok || len(list.Elements) != 3 {
		t.Fatalf("got %#v", la.Value)
	}
	m, ok := list.Elements[2].(ast.Map)
	if !ok || len(m.Entries) != 2 {
		t.Fatalf("got %#v", list.Elements[2])
	}
}
