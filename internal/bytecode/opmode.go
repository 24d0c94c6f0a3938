package bytecode

// OpmodeKind distinguishes the three ways a 32-bit instruction word can be
// carved up.
type OpmodeKind uint8

const (
	// OpmodeABC: opcode(6) A(8) C(9) B(9), low to high.
	OpmodeABC OpmodeKind = iota
	// OpmodeABx: opcode(6) A(8) Bx(18), low to high.
	OpmodeABx
	// OpmodeAsBx: opcode(6) A(8) sBx(18, biased), low to high.
	OpmodeAsBx
	// OpmodeNop marks the synthetic NOP instruction; never serialized.
	OpmodeNop
)

// sBxBias is the bias subtracted/added when packing a signed jump offset
// into the unsigned 18-bit sBx field.
const sBxBias int32 = 0x1FFFF

// Opmode is the cached packed-operand form of a decoded instruction. It is
// recomputed by Instr.OpMode whenever the decoded form mutates, and is what
// Serialize actually packs back into a 32-bit word.
type Opmode struct {
	Kind OpmodeKind
	A    uint32
	B    uint32 // iABC's B field, or iABx's Bx field
	C    uint32 // iABC's C field only
	SBx  int32  // iAsBx's signed offset only
}

func decodeABC(word uint32) (a, b, c uint32) {
	a = (word >> 6) & 0xff
	c = (word >> 14) & 0x1ff
	b = (word >> 23) & 0x1ff
	return
}

func decodeABx(word uint32) (a, bx uint32) {
	a = (word >> 6) & 0xff
	bx = (word >> 14) & 0x3ffff
	return
}

func decodeAsBx(word uint32) (a uint32, sbx int32) {
	a = (word >> 6) & 0xff
	raw := (word >> 14) & 0x3ffff
	sbx = int32(raw) - sBxBias
	return
}

// encode packs op and m back into a 32-bit instruction word.
func encode(op Opcode, m Opmode) (uint32, error) {
	word := uint32(op)
	switch m.Kind {
	case OpmodeABC:
		word |= (m.A & 0xff) << 6
		word |= (m.B & 0x1ff) << 23
		word |= (m.C & 0x1ff) << 14
	case OpmodeABx:
		word |= (m.A & 0xff) << 6
		word |= (m.B & 0x3ffff) << 14
	case OpmodeAsBx:
		word |= (m.A & 0xff) << 6
		word |= uint32(m.SBx+sBxBias) << 14
	default:
		return 0, newFormatError("cannot serialize a NOP instruction")
	}
	return word, nil
}
