package bytecode

import "sync/atomic"

// instructionCounter issues stable, monotonically increasing instruction
// IDs. It is process-wide (not per-prototype) so IDs never collide even
// across repeated obfuscation runs within one process; atomic access keeps
// it safe if tests ever exercise it from multiple goroutines, though the
// transformer itself is single-threaded.
var instructionCounter atomic.Uint64

func nextInstructionID() uint64 {
	return instructionCounter.Add(1)
}

// Instruction pairs a decoded, typed instruction with its opcode and a
// cached packed operand form. ID is stable across list insertions: it
// identifies an instruction irrespective of its current position, so
// references recorded elsewhere (the IR's constant-reference table, a
// flattener bookmark) survive insertions that shift every later index.
type Instruction struct {
	Op      Opcode
	Decoded Instr
	Encoded Opmode
	ID      uint64
}

// NewInstruction wraps a freshly constructed Instr, computing its packed
// form and issuing a new stable ID.
func NewInstruction(decoded Instr) *Instruction {
	return &Instruction{
		Op:      decoded.Opcode(),
		Decoded: decoded,
		Encoded: decoded.OpMode(),
		ID:      nextInstructionID(),
	}
}

// Repack recomputes Encoded from the current state of Decoded. Call this
// after mutating any field reachable from Decoded (e.g. a register
// renumbering pass) to keep the two forms in agreement.
func (in *Instruction) Repack() {
	in.Encoded = in.Decoded.OpMode()
}

// decodeInstruction builds an Instruction from a raw wire word, looking
// ahead at next for opcodes (SETLIST) whose encoding spills into a
// following word. The second return value reports whether that lookahead
// word was consumed as part of this instruction, so the caller must skip
// it rather than decode it as an instruction of its own.
func decodeInstruction(word uint32, next *uint32) (*Instruction, bool, error) {
	op, ok := opcodeFromByte(byte(word & 0x3f))
	if !ok {
		return nil, false, newFormatError("unknown opcode byte %d", word&0x3f)
	}
	decoded, err := decodeInstr(op, word, next)
	if err != nil {
		return nil, false, err
	}
	consumedNext := false
	if setList, ok := decoded.(*InstrSetList); ok {
		consumedNext = setList.Extended
	}
	return &Instruction{
		Op:      op,
		Decoded: decoded,
		Encoded: decoded.OpMode(),
		ID:      nextInstructionID(),
	}, consumedNext, nil
}

// Serialize packs the instruction back into its 32-bit wire word. It
// refuses to serialize the synthetic NOP variant.
func (in *Instruction) Serialize() (uint32, error) {
	if in.Op == OpNop {
		return 0, newFormatError("attempted to serialize a NOP instruction")
	}
	return encode(in.Op, in.Encoded)
}
