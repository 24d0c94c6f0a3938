package flatten

import "github.com/lua-obf/luaobf/internal/bytecode"

// cloneInstructions returns a deep copy of code: fresh *Instruction
// wrappers (with fresh stable IDs) wrapping copies of each decoded operand
// struct, so in-place register remapping never mutates the caller's
// prototype.
func cloneInstructions(code []*bytecode.Instruction) []*bytecode.Instruction {
	out := make([]*bytecode.Instruction, len(code))
	for i, instr := range code {
		out[i] = bytecode.NewInstruction(cloneDecoded(instr.Decoded))
	}
	return out
}

func cloneDecoded(d bytecode.Instr) bytecode.Instr {
	switch v := d.(type) {
	case *bytecode.InstrMove:
		c := *v
		return &c
	case *bytecode.InstrLoadK:
		c := *v
		return &c
	case *bytecode.InstrLoadBool:
		c := *v
		return &c
	case *bytecode.InstrLoadNil:
		c := *v
		return &c
	case *bytecode.InstrGetUpval:
		c := *v
		return &c
	case *bytecode.InstrGetGlobal:
		c := *v
		return &c
	case *bytecode.InstrGetTable:
		c := *v
		return &c
	case *bytecode.InstrSetGlobal:
		c := *v
		return &c
	case *bytecode.InstrSetUpval:
		c := *v
		return &c
	case *bytecode.InstrSetTable:
		c := *v
		return &c
	case *bytecode.InstrNewTable:
		c := *v
		return &c
	case *bytecode.InstrSelf:
		c := *v
		return &c
	case *bytecode.InstrBinOp:
		c := *v
		return &c
	case *bytecode.InstrUnOp:
		c := *v
		return &c
	case *bytecode.InstrConcat:
		c := *v
		return &c
	case *bytecode.InstrJump:
		c := *v
		return &c
	case *bytecode.InstrBinCondOp:
		c := *v
		return &c
	case *bytecode.InstrTest:
		c := *v
		return &c
	case *bytecode.InstrTestSet:
		c := *v
		return &c
	case *bytecode.InstrCall:
		c := *v
		return &c
	case *bytecode.InstrTailCall:
		c := *v
		return &c
	case *bytecode.InstrReturn:
		c := *v
		return &c
	case *bytecode.InstrForLoop:
		c := *v
		return &c
	case *bytecode.InstrForPrep:
		c := *v
		return &c
	case *bytecode.InstrTForLoop:
		c := *v
		return &c
	case *bytecode.InstrSetList:
		c := *v
		return &c
	case *bytecode.InstrClose:
		c := *v
		return &c
	case *bytecode.InstrClosure:
		c := *v
		return &c
	case *bytecode.InstrVarArg:
		c := *v
		return &c
	case *bytecode.InstrNop:
		c := *v
		return &c
	default:
		return d
	}
}
