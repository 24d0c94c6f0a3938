package flatten

import (
	"testing"

	"github.com/lua-obf/luaobf/internal/bytecode"
)

func TestRemapRegistersShiftsPlainRegisterFields(t *testing.T) {
	proto := &bytecode.Prototype{
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrMove{A: 0, B: 1}),
		},
	}
	regs := NewRegisters(250)
	regs.Bias(2)

	if err := remapRegisters(proto, regs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	move := proto.Instructions[0].Decoded.(*bytecode.InstrMove)
	if move.A != 3 || move.B != 4 {
		t.Fatalf("expected A=3, B=4 after bias-2 remap (shift 3), got A=%d B=%d", move.A, move.B)
	}
}

func TestRemapRegistersLeavesConstantOperandsAlone(t *testing.T) {
	proto := &bytecode.Prototype{
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrBinOp{
				A: 0, B: bytecode.RegKstFromReg(1), Op: bytecode.BinAdd, C: bytecode.RegKstFromConstIndex(5),
			}),
		},
	}
	regs := NewRegisters(250)
	regs.Bias(1)

	if err := remapRegisters(proto, regs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	add := proto.Instructions[0].Decoded.(*bytecode.InstrBinOp)
	if add.A != 2 {
		t.Fatalf("expected A remapped to 2, got %d", add.A)
	}
	if add.B.IsConst() || add.B.Reg() != 3 {
		t.Fatalf("expected register operand B remapped to register 3, got %+v", add.B)
	}
	if !add.C.IsConst() || add.C.ConstIndex() != 5 {
		t.Fatalf("expected constant operand C to be left untouched, got %+v", add.C)
	}
}

func TestRemapRegistersSkipsBinCondOpFlag(t *testing.T) {
	proto := &bytecode.Prototype{
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrBinCondOp{
				AFlag: true, B: bytecode.RegKstFromReg(0), Op: bytecode.CondLt, C: bytecode.RegKstFromReg(1),
			}),
		},
	}
	regs := NewRegisters(250)
	regs.Bias(4)

	if err := remapRegisters(proto, regs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmp := proto.Instructions[0].Decoded.(*bytecode.InstrBinCondOp)
	if !cmp.AFlag {
		t.Fatalf("AFlag must survive remap untouched")
	}
	if cmp.B.Reg() != 5 || cmp.C.Reg() != 6 {
		t.Fatalf("expected registers shifted by 5 after bias-4, got B=%d C=%d", cmp.B.Reg(), cmp.C.Reg())
	}
}

func TestRemapRegistersRejectsSyntheticNop(t *testing.T) {
	proto := &bytecode.Prototype{
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrNop{}),
		},
	}
	regs := NewRegisters(250)

	if err := remapRegisters(proto, regs); err == nil {
		t.Fatalf("expected an unsupported-opcode fault for a NOP")
	}
}

func TestRemapRegistersRepacksEncodedForm(t *testing.T) {
	proto := &bytecode.Prototype{
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrMove{A: 0, B: 1}),
		},
	}
	regs := NewRegisters(250)
	regs.Bias(5)

	if err := remapRegisters(proto, regs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	instr := proto.Instructions[0]
	if instr.Encoded.A != 6 || instr.Encoded.B != 7 {
		t.Fatalf("expected Encoded to be refreshed after remap, got %+v", instr.Encoded)
	}
}
