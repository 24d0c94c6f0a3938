package flatten

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fault is satisfied by every error this package raises as a fatal abort
// condition. The driver dispatches on it (via errors.As) to decide exit
// codes without inspecting error strings.
type Fault interface {
	error
	Kind() string
}

type baseFault struct {
	kind string
	msg  string
}

func (f *baseFault) Error() string { return f.msg }
func (f *baseFault) Kind() string  { return f.kind }

// errUndefinedJumpTarget: a branch's destination does not land on a block
// leader.
func errUndefinedJumpTarget(offset int32) error {
	return errors.WithStack(&baseFault{kind: "undefined-jump-target", msg: fmtf("branch destination (offset %d) does not resolve to a block leader", offset)})
}

// errMalformedConditional: a conditional opcode was not immediately
// followed by a single-instruction Jump block, as required by the
// conditional rewrite rule.
func errMalformedConditional(block int) error {
	return errors.WithStack(&baseFault{kind: "malformed-conditional", msg: fmtf("conditional in block %d is not followed by a paired jump block", block)})
}

// errRegisterExhaustedFault is the sentinel fault value for register
// exhaustion; errors.As(err, new(Fault)) unwraps to this through the
// pkg/errors stack trace wrapper.
var errRegisterExhaustedFault = &baseFault{kind: "register-exhausted", msg: "register allocator exhausted its capacity"}

func errRegisterExhausted() error {
	return errors.WithStack(errRegisterExhaustedFault)
}

// errUnsupportedOpcode: an opcode outside the supported set reached the
// flattener (a synthetic NOP in input bytecode falls here too).
func errUnsupportedOpcode(name string) error {
	return errors.WithStack(&baseFault{kind: "unsupported-opcode", msg: fmtf("opcode %s is not supported by the flattener", name)})
}

func fmtf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
