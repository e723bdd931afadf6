// Package vm implements the deterministic Lisp-like bytecode evaluator: a
// pure function from (World, Transaction) to Context, metered by juice
// and free of any source of non-determinism (§4.4).
package vm

import "fmt"

// ErrorKind distinguishes user-visible VM failures from the control-flow
// exits used internally by the evaluator (§4.4, §7).
type ErrorKind string

const (
	KindNobody     ErrorKind = "NOBODY"
	KindUndeclared ErrorKind = "UNDECLARED"
	KindArgument   ErrorKind = "ARGUMENT"
	KindCast       ErrorKind = "CAST"
	KindState      ErrorKind = "STATE"
	KindTrust      ErrorKind = "TRUST"
	KindFunds      ErrorKind = "FUNDS"
	KindMemory     ErrorKind = "MEMORY"
	KindAssert     ErrorKind = "ASSERT"
	KindJuice      ErrorKind = "JUICE"
	KindSequence   ErrorKind = "SEQUENCE"
)

// controlFlowKinds are non-local exits that are not user-visible failures;
// they are caught and interpreted by the evaluator itself (Lambda return,
// loop recur, explicit halt, tail call dispatch) and never surface in a
// BlockResult.
var controlFlowKinds = map[ErrorKind]bool{
	"HALT": true, "RECUR": true, "RETURN": true, "TAILCALL": true,
}

// VMError is a typed VM failure carrying a kind and a message. Its Trace
// field is not populated: errf leaves it empty and nothing fills it later.
type VMError struct {
	Kind    ErrorKind
	Message string
	Trace   []string
}

func (e *VMError) Error() string { return string(e.Kind) + ": " + e.Message }

func errf(kind ErrorKind, format string, args ...interface{}) *VMError {
	return &VMError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
