// Package ir owns a single function prototype plus the bookkeeping needed
// to mutate it safely: a constant-reference table kept consistent under
// instruction/constant insertion, and the control-flow mapper that splits
// an instruction stream into basic blocks.
package ir

import (
	"github.com/lua-obf/luaobf/internal/bytecode"
)

// Slot identifies which operand field of an instruction a constant-pool
// reference lives in. Only the three kinds that ever carry a constant are
// represented; A is never constant-valued in this instruction set.
type Slot int

const (
	SlotBx Slot = iota
	SlotB
	SlotC
)

type constantRef struct {
	kst  uint32
	slot Slot
	ip   int
}

// Context wraps one prototype plus the live index of which instructions
// reference which constants. Debug-info sequences are dropped on
// construction: nothing in this package keeps them correct under mutation.
type Context struct {
	Header bytecode.Header
	Chunk  *bytecode.Prototype

	constantRefs []constantRef
}

// NewContext adopts chunk, clearing its debug-info sequences.
func NewContext(header bytecode.Header, chunk *bytecode.Prototype) *Context {
	chunk.SourceLines = nil
	chunk.Locals = nil
	chunk.UpvalueNames = nil
	return &Context{Header: header, Chunk: chunk}
}

// GetConstant returns the constant at index k, if any.
func (c *Context) GetConstant(k uint32) (bytecode.Constant, bool) {
	if int(k) >= len(c.Chunk.Constants) {
		return nil, false
	}
	return c.Chunk.Constants[k], true
}

func (c *Context) addConstantRef(ip int, kst uint32, slot Slot) {
	c.constantRefs = append(c.constantRefs, constantRef{kst: kst, slot: slot, ip: ip})
}

// applyConstantRefs rewrites every tracked instruction's operand to carry
// its currently-recorded constant index, then repacks the encoded form.
func (c *Context) applyConstantRefs() {
	for _, ref := range c.constantRefs {
		if ref.ip < 0 || ref.ip >= len(c.Chunk.Instructions) {
			continue
		}
		instr := c.Chunk.Instructions[ref.ip]
		switch d := instr.Decoded.(type) {
		case *bytecode.InstrLoadK:
			d.K = bytecode.Kst(ref.kst)
		case *bytecode.InstrGetGlobal:
			d.K = bytecode.Kst(ref.kst)
		case *bytecode.InstrSetGlobal:
			d.K = bytecode.Kst(ref.kst)
		case *bytecode.InstrBinOp:
			switch ref.slot {
			case SlotB:
				d.B = d.B.WithConstIndex(ref.kst)
			case SlotC:
				d.C = d.C.WithConstIndex(ref.kst)
			}
		case *bytecode.InstrBinCondOp:
			switch ref.slot {
			case SlotB:
				d.B = d.B.WithConstIndex(ref.kst)
			case SlotC:
				d.C = d.C.WithConstIndex(ref.kst)
			}
		}
		instr.Repack()
	}
}

// AddConstant inserts c at index idx, shifting every tracked reference at
// or past idx up by one, then rewrites the instructions those references
// point at.
func (c *Context) AddConstant(idx int, k bytecode.Constant) {
	for i := range c.constantRefs {
		if int(c.constantRefs[i].kst) >= idx {
			c.constantRefs[i].kst++
		}
	}
	c.applyConstantRefs()

	consts := make([]bytecode.Constant, 0, len(c.Chunk.Constants)+1)
	consts = append(consts, c.Chunk.Constants[:idx]...)
	consts = append(consts, k)
	consts = append(consts, c.Chunk.Constants[idx:]...)
	c.Chunk.Constants = consts
}

// GetOrAddConstant returns the index of an existing structurally-equal
// constant, or appends k and returns its new index.
func (c *Context) GetOrAddConstant(k bytecode.Constant) uint32 {
	for i, existing := range c.Chunk.Constants {
		if existing.Equal(k) {
			return uint32(i)
		}
	}
	idx := len(c.Chunk.Constants)
	c.AddConstant(idx, k)
	return uint32(idx)
}

// mapInstr returns the constant references instr's decoded form carries,
// tagged with ip, for instructions whose referenced index resolves to a
// real constant.
func (c *Context) mapInstr(ip int, instr *bytecode.Instruction) []constantRef {
	var refs []constantRef
	switch d := instr.Decoded.(type) {
	case *bytecode.InstrLoadK:
		if _, ok := c.GetConstant(uint32(d.K)); ok {
			refs = append(refs, constantRef{kst: uint32(d.K), slot: SlotBx, ip: ip})
		}
	case *bytecode.InstrGetGlobal:
		if _, ok := c.GetConstant(uint32(d.K)); ok {
			refs = append(refs, constantRef{kst: uint32(d.K), slot: SlotBx, ip: ip})
		}
	case *bytecode.InstrSetGlobal:
		if _, ok := c.GetConstant(uint32(d.K)); ok {
			refs = append(refs, constantRef{kst: uint32(d.K), slot: SlotBx, ip: ip})
		}
	case *bytecode.InstrBinOp:
		if d.B.IsConst() {
			if _, ok := c.GetConstant(d.B.ConstIndex()); ok {
				refs = append(refs, constantRef{kst: d.B.ConstIndex(), slot: SlotB, ip: ip})
			}
		}
		if d.C.IsConst() {
			if _, ok := c.GetConstant(d.C.ConstIndex()); ok {
				refs = append(refs, constantRef{kst: d.C.ConstIndex(), slot: SlotC, ip: ip})
			}
		}
	case *bytecode.InstrBinCondOp:
		if d.B.IsConst() {
			if _, ok := c.GetConstant(d.B.ConstIndex()); ok {
				refs = append(refs, constantRef{kst: d.B.ConstIndex(), slot: SlotB, ip: ip})
			}
		}
		if d.C.IsConst() {
			if _, ok := c.GetConstant(d.C.ConstIndex()); ok {
				refs = append(refs, constantRef{kst: d.C.ConstIndex(), slot: SlotC, ip: ip})
			}
		}
	}
	return refs
}

// MapConstants scans the whole instruction list and populates the
// reference table from scratch. Call once after building a Context from
// freshly decoded bytecode.
func (c *Context) MapConstants() {
	c.constantRefs = nil
	for ip, instr := range c.Chunk.Instructions {
		c.constantRefs = append(c.constantRefs, c.mapInstr(ip, instr)...)
	}
}

// AddInstruction inserts instr at idx, shifts every tracked reference at or
// past idx, registers instr's own constant references, and returns instr's
// stable ID.
func (c *Context) AddInstruction(idx int, instr *bytecode.Instruction) uint64 {
	instrs := make([]*bytecode.Instruction, 0, len(c.Chunk.Instructions)+1)
	instrs = append(instrs, c.Chunk.Instructions[:idx]...)
	instrs = append(instrs, instr)
	instrs = append(instrs, c.Chunk.Instructions[idx:]...)
	c.Chunk.Instructions = instrs

	for i := range c.constantRefs {
		if c.constantRefs[i].ip >= idx {
			c.constantRefs[i].ip++
		}
	}

	c.constantRefs = append(c.constantRefs, c.mapInstr(idx, instr)...)
	c.applyConstantRefs()

	return instr.ID
}

// FindInstructionAt returns the current index of the instruction with the
// given stable ID.
func (c *Context) FindInstructionAt(id uint64) (int, bool) {
	for i, instr := range c.Chunk.Instructions {
		if instr.ID == id {
			return i, true
		}
	}
	return 0, false
}

// MaxIP returns the current instruction count — the index an appended
// instruction would occupy.
func (c *Context) MaxIP() int {
	return len(c.Chunk.Instructions)
}
