// Package flatten implements the control-flow flattening transform: given
// one function prototype, it produces a semantically equivalent prototype
// whose body is a single dispatch-register-guarded state machine.
package flatten

import (
	"github.com/lua-obf/luaobf/internal/bytecode"
	"github.com/lua-obf/luaobf/internal/ir"
)

// maxStackSize is this VM generation's register-file capacity.
const maxStackSize = 250

// Flatten transforms proto, and recursively every nested prototype it
// contains, into state-machine form. Nested closures are flattened
// depth-first, post-order, before proto's own body is rewritten, so that
// Closure operands continue to address the right (now-flattened) slot.
func Flatten(header bytecode.Header, proto *bytecode.Prototype) (*bytecode.Prototype, error) {
	flattened := bytecode.NewPrototype()
	flattened.NumUpvalues = proto.NumUpvalues
	flattened.NumParams = proto.NumParams
	flattened.VarargFlag = proto.VarargFlag
	flattened.Source = proto.Source
	flattened.MaxStackSize = maxStackSize
	flattened.Constants = append([]bytecode.Constant(nil), proto.Constants...)

	flatCtx := ir.NewContext(header, flattened)

	for _, nested := range proto.Prototypes {
		flattenedNested, err := Flatten(header, nested)
		if err != nil {
			return nil, err
		}
		flatCtx.Chunk.Prototypes = append(flatCtx.Chunk.Prototypes, flattenedNested)
	}

	regs := NewRegisters(maxStackSize)
	regs.Bias(int(proto.NumParams))

	stateIdx, err := regs.Allocate()
	if err != nil {
		return nil, err
	}
	stateReg := bytecode.Reg(stateIdx)
	regs.ReserveWindow(int(proto.MaxStackSize))

	working := cloneInstructions(proto.Instructions)
	workingProto := &bytecode.Prototype{Instructions: working}
	if err := remapRegisters(workingProto, regs); err != nil {
		return nil, err
	}

	cfgBlocks := ir.MapControlFlow(working)

	flatBlocks, err := rewriteBlocks(flatCtx, working, cfgBlocks, stateReg, regs)
	if err != nil {
		return nil, err
	}

	if err := finalize(flatCtx, stateReg, len(cfgBlocks), flatBlocks); err != nil {
		return nil, err
	}

	return flatCtx.Chunk, nil
}
