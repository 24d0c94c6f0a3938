package bytecode

// Reg is a stack-slot index in 0..=255.
type Reg uint8

// Kst is an index into a prototype's own constant pool. Unlike RegKst,
// a Kst operand field (LOADK's Bx, GETGLOBAL/SETGLOBAL's Bx) carries the
// constant index directly, with no bias. CLOSURE's Bx is a nested-prototype
// index, not a Kst.
type Kst uint32

// Upvalue is an upvalue-slot index.
type Upvalue uint16

// RegKst is an operand field that names either a register or a constant.
// The wire convention: a raw 9-bit ABC operand value greater than 0xFF
// denotes a constant, with the true constant-pool index equal to the raw
// value minus 0x100. RegKst stores the raw wire value for constants (not
// the subtracted index) so that re-encoding is a pure identity operation;
// use ConstIndex to recover the real pool index.
type RegKst struct {
	isConst bool
	raw     uint32
}

// RegKstFromReg builds a register-valued operand.
func RegKstFromReg(r Reg) RegKst {
	return RegKst{isConst: false, raw: uint32(r)}
}

// RegKstFromConstIndex builds a constant-valued operand from a true
// constant-pool index, applying the +0x100 wire bias.
func RegKstFromConstIndex(k uint32) RegKst {
	return RegKst{isConst: true, raw: k + 0x100}
}

// regKstFromRaw decodes a raw 9-bit ABC field per the >0xFF convention.
func regKstFromRaw(raw uint32) RegKst {
	return RegKst{isConst: raw > 0xFF, raw: raw}
}

func (rk RegKst) IsConst() bool { return rk.isConst }

// Reg returns the register this operand names. Only valid if !IsConst().
func (rk RegKst) Reg() Reg { return Reg(rk.raw) }

// ConstIndex returns the true constant-pool index this operand names.
// Only valid if IsConst().
func (rk RegKst) ConstIndex() uint32 { return rk.raw - 0x100 }

// Raw returns the value as it should be packed into an ABC 9-bit field.
func (rk RegKst) Raw() uint32 { return rk.raw }

// WithReg returns a register-valued operand naming r. The result is
// register-valued even when rk was constant-valued.
func (rk RegKst) WithReg(r Reg) RegKst {
	return RegKst{isConst: false, raw: uint32(r)}
}

// WithConstIndex returns a copy of rk repointed at constant-pool index k,
// applying the wire bias. Used by the IR context to rewrite an operand in
// place after a constant-pool insertion shifts k.
func (rk RegKst) WithConstIndex(k uint32) RegKst {
	return RegKst{isConst: true, raw: k + 0x100}
}

// BinOp identifies an arithmetic binary operator.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
)

// UnOp identifies a unary operator.
type UnOp uint8

const (
	UnUnm UnOp = iota
	UnNot
	UnLen
)

// BinCondOp identifies a conditional comparison operator.
type BinCondOp uint8

const (
	CondEq BinCondOp = iota
	CondLt
	CondLe
)
