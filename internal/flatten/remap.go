package flatten

import "github.com/lua-obf/luaobf/internal/bytecode"

// remapRegisters rewrites every register-valued operand of every
// instruction in proto through regs, leaving constant-pool indices and
// other non-register fields untouched. BinCondOp's leading field is a
// comparison flag, never a register, and is skipped accordingly.
func remapRegisters(proto *bytecode.Prototype, regs *Registers) error {
	for _, instr := range proto.Instructions {
		if err := remapInstr(instr, regs); err != nil {
			return err
		}
	}
	return nil
}

func remapReg(r bytecode.Reg, regs *Registers) (bytecode.Reg, error) {
	v, err := regs.Get(int(r))
	if err != nil {
		return 0, err
	}
	return bytecode.Reg(v), nil
}

func remapRegKst(rk bytecode.RegKst, regs *Registers) (bytecode.RegKst, error) {
	if rk.IsConst() {
		return rk, nil
	}
	v, err := regs.Get(int(rk.Reg()))
	if err != nil {
		return bytecode.RegKst{}, err
	}
	return bytecode.RegKstFromReg(bytecode.Reg(v)), nil
}

func remapInstr(instr *bytecode.Instruction, regs *Registers) error {
	var err error
	switch d := instr.Decoded.(type) {
	case *bytecode.InstrMove:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
	case *bytecode.InstrLoadK:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrLoadBool:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrLoadNil:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
	case *bytecode.InstrGetUpval:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrGetGlobal:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrGetTable:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapRegKst(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrSetGlobal:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrSetUpval:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrSetTable:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapRegKst(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapRegKst(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrNewTable:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapReg(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrSelf:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapRegKst(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrBinOp:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapRegKst(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapRegKst(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrUnOp:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
	case *bytecode.InstrConcat:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapReg(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrJump:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrBinCondOp:
		// AFlag is a comparison flag, not a register; B and C may be
		// constant-valued and are left alone in that case.
		if d.B, err = remapRegKst(d.B, regs); err != nil {
			return err
		}
		if d.C, err = remapRegKst(d.C, regs); err != nil {
			return err
		}
	case *bytecode.InstrTest:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrTestSet:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
		if d.B, err = remapReg(d.B, regs); err != nil {
			return err
		}
	case *bytecode.InstrCall:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrTailCall:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrReturn:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrForLoop:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrForPrep:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrTForLoop:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrSetList:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrClose:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrClosure:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrVarArg:
		if d.A, err = remapReg(d.A, regs); err != nil {
			return err
		}
	case *bytecode.InstrNop:
		return errUnsupportedOpcode("NOP")
	default:
		return errUnsupportedOpcode(instr.Op.String())
	}
	instr.Repack()
	return nil
}
