package flatten

import (
	"github.com/lua-obf/luaobf/internal/bytecode"
	"github.com/lua-obf/luaobf/internal/ir"
)

// flatBlock is one source block's materialized straight-line replacement
// body, keyed by its original block index (the dispatcher label it will be
// addressed by).
type flatBlock struct {
	label  int
	instrs []bytecode.Instr
}

func regR(r bytecode.Reg) bytecode.RegKst { return bytecode.RegKstFromReg(r) }

// rewriteBlocks walks every block of the source CFG and produces its
// flattened replacement body, per the per-block rewrite rules. Blocks
// consumed as the paired Jump of a conditional or TForLoop rewrite are
// skipped entirely — they never gain their own dispatcher arm.
func rewriteBlocks(flatCtx *ir.Context, code []*bytecode.Instruction, blocks []ir.Block, stateReg bytecode.Reg, regs *Registers) ([]flatBlock, error) {
	skip := make(map[int]bool, len(blocks))
	result := make([]flatBlock, 0, len(blocks))

	for i, block := range blocks {
		if skip[i] {
			continue
		}
		fb, consumesNext, err := rewriteBlock(flatCtx, code, blocks, i, block, stateReg, regs)
		if err != nil {
			return nil, err
		}
		if consumesNext {
			skip[i+1] = true
		}
		result = append(result, fb)
	}

	return result, nil
}

// pairedJump inspects the block immediately following i, requiring it to
// be exactly one Jump instruction (the shape every conditional and
// TForLoop rewrite depends on), and returns its resolved target label.
func pairedJump(blocks []ir.Block, i int) (int, error) {
	if i+1 >= len(blocks) {
		return 0, errMalformedConditional(i)
	}
	next := blocks[i+1]
	if len(next.Code) != 1 {
		return 0, errMalformedConditional(i)
	}
	if next.Target.Kind != ir.TargetLabel {
		return 0, errUndefinedJumpTarget(next.Target.Offset)
	}
	return int(next.Target.Label), nil
}

func rewriteBlock(flatCtx *ir.Context, code []*bytecode.Instruction, blocks []ir.Block, i int, block ir.Block, stateReg bytecode.Reg, regs *Registers) (flatBlock, bool, error) {
	targetBlock := i + 1
	addTarget := true
	consumesNext := false
	var instrs []bytecode.Instr

	for _, ip := range block.Code {
		d := code[ip].Decoded

		switch v := d.(type) {
		case *bytecode.InstrForPrep:
			instrs = append(instrs, &bytecode.InstrBinOp{A: v.A, B: regR(v.A), Op: bytecode.BinSub, C: regR(v.A + 2)})
			if block.Target.Kind != ir.TargetLabel {
				return flatBlock{}, false, errUndefinedJumpTarget(block.Target.Offset)
			}
			targetBlock = int(block.Target.Label)

		case *bytecode.InstrForLoop:
			if block.Target.Kind != ir.TargetLabel {
				return flatBlock{}, false, errUndefinedJumpTarget(block.Target.Offset)
			}
			lBody := int(block.Target.Label)
			lNext := i + 1
			forLoopInstrs, err := expandForLoop(flatCtx, v.A, stateReg, lBody, lNext)
			if err != nil {
				return flatBlock{}, false, err
			}
			instrs = append(instrs, forLoopInstrs...)
			addTarget = false

		case *bytecode.InstrTForLoop:
			lBody, err := pairedJump(blocks, i)
			if err != nil {
				return flatBlock{}, false, err
			}
			lAfter := i + 2
			tforInstrs, err := expandTForLoop(flatCtx, v.A, v.C, stateReg, lBody, lAfter, regs)
			if err != nil {
				return flatBlock{}, false, err
			}
			instrs = append(instrs, tforInstrs...)
			addTarget = false
			consumesNext = true

		case *bytecode.InstrBinCondOp:
			condInstrs, err := expandConditional(flatCtx, d, blocks, i, stateReg)
			if err != nil {
				return flatBlock{}, false, err
			}
			instrs = append(instrs, condInstrs...)
			addTarget = false
			consumesNext = true

		case *bytecode.InstrTest:
			condInstrs, err := expandConditional(flatCtx, d, blocks, i, stateReg)
			if err != nil {
				return flatBlock{}, false, err
			}
			instrs = append(instrs, condInstrs...)
			addTarget = false
			consumesNext = true

		case *bytecode.InstrTestSet:
			condInstrs, err := expandConditional(flatCtx, d, blocks, i, stateReg)
			if err != nil {
				return flatBlock{}, false, err
			}
			instrs = append(instrs, condInstrs...)
			addTarget = false
			consumesNext = true

		case *bytecode.InstrJump:
			if block.Target.Kind != ir.TargetLabel {
				return flatBlock{}, false, errUndefinedJumpTarget(block.Target.Offset)
			}
			targetBlock = int(block.Target.Label)

		default:
			instrs = append(instrs, d)
		}
	}

	if addTarget {
		kst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(targetBlock)))
		instrs = append(instrs, &bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(kst)})
	}

	return flatBlock{label: i, instrs: instrs}, consumesNext, nil
}

// expandConditional rewrites a Test/TestSet/Eq/Lt/Le terminator that is
// always paired with a following single-instruction Jump block: the
// comparison is kept as-is, then the state register is set to the Jump's
// target on the taken path (the comparison does not skip the synthesized
// Jump) and to the block after the Jump block on the not-taken path.
func expandConditional(flatCtx *ir.Context, comparison bytecode.Instr, blocks []ir.Block, i int, stateReg bytecode.Reg) ([]bytecode.Instr, error) {
	taken, err := pairedJump(blocks, i)
	if err != nil {
		return nil, err
	}
	fallthroughLabel := i + 2

	takenKst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(taken)))
	fallKst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(fallthroughLabel)))

	return []bytecode.Instr{
		comparison,
		&bytecode.InstrJump{A: stateReg, Offset: 2},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(fallKst)},
		&bytecode.InstrJump{A: stateReg, Offset: 1},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(takenKst)},
	}, nil
}

// expandForLoop inlines the step-sign-aware comparison that FORLOOP
// performs on the real VM: increment the induction variable, then either
// copy it into the user-visible loop variable and continue at lBody, or
// exit to lNext, handling the step<0 and step>=0 cases with swapped
// comparisons since Lua encodes only one direction of Le/Lt per variant.
func expandForLoop(flatCtx *ir.Context, a bytecode.Reg, stateReg bytecode.Reg, lBody, lNext int) ([]bytecode.Instr, error) {
	zero := flatCtx.GetOrAddConstant(bytecode.ConstNumber(0))
	targetBody := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(lBody)))
	targetNext := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(lNext)))

	return []bytecode.Instr{
		&bytecode.InstrBinOp{A: a, B: regR(a), Op: bytecode.BinAdd, C: regR(a + 2)},
		&bytecode.InstrBinCondOp{AFlag: true, B: regR(a + 2), Op: bytecode.CondLt, C: bytecode.RegKstFromConstIndex(zero)},
		&bytecode.InstrJump{A: stateReg, Offset: 7},
		// step >= 0 path
		&bytecode.InstrBinCondOp{AFlag: false, B: regR(a), Op: bytecode.CondLe, C: regR(a + 1)},
		&bytecode.InstrJump{A: stateReg, Offset: 3},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(targetBody)},
		&bytecode.InstrMove{A: a + 3, B: a},
		&bytecode.InstrJump{A: stateReg, Offset: 8},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(targetNext)},
		&bytecode.InstrJump{A: stateReg, Offset: 7},
		// step < 0 path
		&bytecode.InstrBinCondOp{AFlag: true, B: regR(a), Op: bytecode.CondLe, C: regR(a + 1)},
		&bytecode.InstrJump{A: stateReg, Offset: 3},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(targetBody)},
		&bytecode.InstrMove{A: a + 3, B: a},
		&bytecode.InstrJump{A: stateReg, Offset: 1},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(targetNext)},
	}, nil
}

// expandTForLoop replaces the generic for-loop opcode with an explicit
// call-the-iterator-and-bind-results sequence: the VM's implicit multi-
// return binding (A(A+1,A+2) into up to C values at A+3..) has no single
// flattened-form opcode, so it is built from NewTable/Call/SetList/GetTable
// primitives, with one scratch register and one key register reused for
// every bound value.
func expandTForLoop(flatCtx *ir.Context, a bytecode.Reg, c uint16, stateReg bytecode.Reg, lBody, lAfter int, regs *Registers) ([]bytecode.Instr, error) {
	alloc := func() (bytecode.Reg, error) {
		v, err := regs.Allocate()
		if err != nil {
			return 0, err
		}
		return bytecode.Reg(v), nil
	}

	table, err := alloc()
	if err != nil {
		return nil, err
	}
	callBase, err := alloc()
	if err != nil {
		return nil, err
	}
	arg1, err := alloc()
	if err != nil {
		return nil, err
	}
	arg2, err := alloc()
	if err != nil {
		return nil, err
	}

	instrs := []bytecode.Instr{
		&bytecode.InstrNewTable{A: table, B: stateReg, C: stateReg},
		&bytecode.InstrMove{A: callBase, B: a},
		&bytecode.InstrMove{A: arg1, B: a + 1},
		&bytecode.InstrMove{A: arg2, B: a + 2},
		&bytecode.InstrCall{A: callBase, B: 3, C: 0},
		&bytecode.InstrSetList{A: table, B: 0, Count: 1},
	}

	scratch, err := alloc()
	if err != nil {
		return nil, err
	}
	keyReg, err := alloc()
	if err != nil {
		return nil, err
	}

	for idx := uint16(1); idx <= c; idx++ {
		idxKst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(idx)))
		instrs = append(instrs,
			&bytecode.InstrLoadK{A: keyReg, K: bytecode.Kst(idxKst)},
			&bytecode.InstrGetTable{A: scratch, B: table, C: regR(keyReg)},
			&bytecode.InstrMove{A: a + 2 + bytecode.Reg(idx), B: scratch},
		)
	}

	nilKst := flatCtx.GetOrAddConstant(bytecode.ConstNil{})
	bodyKst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(lBody)))
	afterKst := flatCtx.GetOrAddConstant(bytecode.ConstNumber(float64(lAfter)))

	instrs = append(instrs,
		&bytecode.InstrLoadK{A: scratch, K: bytecode.Kst(nilKst)},
		&bytecode.InstrBinCondOp{AFlag: true, B: regR(a + 3), Op: bytecode.CondEq, C: regR(scratch)},
		&bytecode.InstrJump{A: stateReg, Offset: 3},
		&bytecode.InstrMove{A: a + 2, B: a + 3},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(bodyKst)},
		&bytecode.InstrJump{A: stateReg, Offset: 1},
		&bytecode.InstrLoadK{A: stateReg, K: bytecode.Kst(afterKst)},
	)

	return instrs, nil
}
