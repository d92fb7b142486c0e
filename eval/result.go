package eval

import "echo/types"

// signalKind tags the non-local exits a statement can produce, relocated
// from MongooseMoo's types.Result/ControlFlow (a value-domain type in
// MongooseMoo) into eval, since non-local control flow is a property of
// evaluation, not of the Value domain itself — see DESIGN.md.
type signalKind int

const (
	signalNone signalKind = iota
	signalReturn
	signalBreak
	signalContinue
)

// Result is what every Eval* method returns: either a value with no
// pending control-flow signal, or a value riding along with a
// return/break/continue that must propagate up through enclosing
// statements until something catches it (a loop for break/continue, the
// call boundary for return).
type Result struct {
	Value  types.Value
	Signal signalKind
	Label  string // break/continue target; empty means "nearest loop"
	Err    *types.EvalError
}

// Ok wraps a plain value with no pending signal.
func Ok(v types.Value) Result { return Result{Value: v} }

// ErrResult wraps an evaluation error.
func ErrResult(err *types.EvalError) Result { return Result{Err: err} }

// IsNormal reports whether this Result is neither an error nor a
// control-flow signal — i.e. whether callers should keep evaluating.
func (r Result) IsNormal() bool { return r.Err == nil && r.Signal == signalNone }

// IsSignal reports whether r carries a return/break/continue.
func (r Result) IsSignal() bool { return r.Signal != signalNone }

func returnSignal(v types.Value) Result { return Result{Value: v, Signal: signalReturn} }
func breakSignal(label string) Result   { return Result{Signal: signalBreak, Label: label} }
func continueSignal(label string) Result { return Result{Signal: signalContinue, Label: label} }
