package flatten

import (
	"github.com/lua-obf/luaobf/internal/bytecode"
	"github.com/lua-obf/luaobf/internal/ir"
)

// finalize assembles the dispatcher around the materialized block bodies:
// one `if state == label then body end` arm per surviving block, a
// terminator arm that drives state negative, and a prologue/epilogue that
// wraps the whole thing in the `while state >= 0` guard.
func finalize(flatCtx *ir.Context, stateReg bytecode.Reg, blockCount int, blocks []flatBlock) error {
	for _, fb := range blocks {
		labelKst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(fb.label)))

		flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrBinCondOp{
			AFlag: false,
			B:     regR(stateReg),
			Op:    bytecode.CondEq,
			C:     bytecode.RegKstFromConstIndex(labelKst),
		}))
		flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrJump{
			A: stateReg, Offset: int32(len(fb.instrs)),
		}))
		for _, instr := range fb.instrs {
			flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(instr))
		}
	}

	// terminator arm: once state reaches the one-past-last label, drive it
	// negative so the guard exits.
	terminalLabel := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(blockCount)))
	endState := flatCtx.GetOrAddConstant(bytecode.ConstNumber(-1))

	flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrBinCondOp{
		AFlag: false,
		B:     regR(stateReg),
		Op:    bytecode.CondEq,
		C:     bytecode.RegKstFromConstIndex(terminalLabel),
	}))
	flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrJump{A: stateReg, Offset: 1}))
	flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(endState)}))

	// prologue: state <- 0, then `while 0 <= state`.
	entry := flatCtx.GetOrAddConstant(bytecode.ConstNumber(0))
	flatCtx.AddInstruction(0, bytecode.NewInstruction(&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(entry)}))

	guard := bytecode.NewInstruction(&bytecode.InstrBinCondOp{
		AFlag: false,
		B:     bytecode.RegKstFromConstIndex(entry),
		Op:    bytecode.CondLe,
		C:     regR(stateReg),
	})
	flatCtx.AddInstruction(1, guard)

	// The exit jump sits at index 2; the back-edge jump and the final Return
	// are appended after the body, so the Return ends up at bodyEnd+2.
	bodyEnd := flatCtx.MaxIP()
	flatCtx.AddInstruction(2, bytecode.NewInstruction(&bytecode.InstrJump{
		A: stateReg, Offset: int32(bodyEnd - 1),
	}))

	guardIP, _ := flatCtx.FindInstructionAt(guard.ID)
	bodyEnd = flatCtx.MaxIP()
	flatCtx.AddInstruction(bodyEnd, bytecode.NewInstruction(&bytecode.InstrJump{
		A: stateReg, Offset: int32(guardIP) - int32(bodyEnd) - 1,
	}))

	flatCtx.AddInstruction(flatCtx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrReturn{A: stateReg, B: 1}))

	return nil
}
