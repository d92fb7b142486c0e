package eval

import (
	"echo/ast"
	"echo/types"
)

// LambdaValue is the Value implementor that closes over an *Environment
// (spec.md §3 "Value ... plus Lambda"). It lives in eval rather than types
// to avoid a types->eval import cycle; it satisfies types.Value purely
// structurally.
type LambdaValue struct {
	Params   []ast.Param
	Body     ast.Node
	Captured *Environment
	Source   string
}

func (LambdaValue) Type() types.TypeCode { return types.TypeLambda }
func (l LambdaValue) String() string     { return "fn(...)" }
func (LambdaValue) Truthy() bool         { return true }
func (l LambdaValue) Equal(o types.Value) bool {
	ol, ok := o.(LambdaValue)
	return ok && ol.Source == l.Source && samePointer(ol.Captured, l.Captured)
}

func samePointer(a, b *Environment) bool { return a == b }
