package bytecode

func encodeHeader(w *Writer, h Header) {
	w.RawBytes(magic[:])
	w.Byte(0x51) // version
	w.Byte(0)    // official format
	w.Byte(1)    // little-endian
	w.Byte(h.IntSize)
	w.Byte(h.SizeTSize)
	w.Byte(h.InstructionSize)
	w.Byte(h.NumberSize)
	w.Byte(0) // floating-point Lua numbers
}

func encodeVector[V any](w *Writer, h Header, items []V, write func(*Writer, Header, V) error) error {
	w.Int(uint32(len(items)), int(h.IntSize))
	for _, v := range items {
		if err := write(w, h, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeConstant(w *Writer, h Header, c Constant) error {
	w.Byte(c.constantTag())
	switch v := c.(type) {
	case ConstNil:
	case ConstBool:
		if v {
			w.Byte(1)
		} else {
			w.Byte(0)
		}
	case ConstNumber:
		w.Number(float64(v), int(h.IntSize))
	case ConstString:
		w.String(string(v), int(h.SizeTSize))
	default:
		return newFormatError("unknown constant type %T", c)
	}
	return nil
}

func encodeLocal(w *Writer, h Header, l LocalVar) error {
	w.String(l.Name, int(h.SizeTSize))
	w.Int(l.StartPC, int(h.IntSize))
	w.Int(l.EndPC, int(h.IntSize))
	return nil
}

// encodeInstructions writes the instruction vector. Its length header
// counts raw wire words, not logical instructions: an extended SETLIST
// (Count carried in a following word rather than its 9-bit C field)
// contributes two words for one *Instruction, so the header and the
// per-instruction emission both account for that extra word.
func encodeInstructions(w *Writer, h Header, instrs []*Instruction) error {
	words := len(instrs)
	for _, ins := range instrs {
		if setList, ok := ins.Decoded.(*InstrSetList); ok && setList.Extended {
			words++
		}
	}
	w.Int(uint32(words), int(h.IntSize))

	for _, ins := range instrs {
		word, err := ins.Serialize()
		if err != nil {
			return err
		}
		w.Int(word, int(h.InstructionSize))
		if setList, ok := ins.Decoded.(*InstrSetList); ok && setList.Extended {
			w.Int(setList.Count, int(h.InstructionSize))
		}
	}
	return nil
}

func encodePrototype(w *Writer, h Header, p *Prototype) error {
	w.String(p.Source, int(h.SizeTSize))
	w.Int(p.LineDefined, int(h.IntSize))
	w.Int(p.LastLineDefined, int(h.IntSize))
	w.Byte(p.NumUpvalues)
	w.Byte(p.NumParams)
	w.Byte(p.VarargFlag)
	w.Byte(p.MaxStackSize)

	if err := encodeInstructions(w, h, p.Instructions); err != nil {
		return err
	}

	if err := encodeVector(w, h, p.Constants, encodeConstant); err != nil {
		return err
	}

	if err := encodeVector(w, h, p.Prototypes, encodePrototype); err != nil {
		return err
	}

	sourceLines := emptyIfNil(p.SourceLines)
	if err := encodeVector(w, h, sourceLines, func(w *Writer, h Header, line uint32) error {
		w.Int(line, int(h.IntSize))
		return nil
	}); err != nil {
		return err
	}

	locals := emptyLocalsIfNil(p.Locals)
	if err := encodeVector(w, h, locals, encodeLocal); err != nil {
		return err
	}

	upvalNames := emptyStringsIfNil(p.UpvalueNames)
	if err := encodeVector(w, h, upvalNames, func(w *Writer, h Header, s string) error {
		w.String(s, int(h.SizeTSize))
		return nil
	}); err != nil {
		return err
	}

	return nil
}

func emptyIfNil(p *[]uint32) []uint32 {
	if p == nil {
		return nil
	}
	return *p
}

func emptyLocalsIfNil(p *[]LocalVar) []LocalVar {
	if p == nil {
		return nil
	}
	return *p
}

func emptyStringsIfNil(p *[]string) []string {
	if p == nil {
		return nil
	}
	return *p
}

// Serialize re-encodes a header and root prototype into a module buffer.
// It refuses to encode any OpNop placeholder instruction left over from a
// partially rewritten prototype.
func Serialize(h Header, proto *Prototype) ([]byte, error) {
	w := NewWriter()
	encodeHeader(w, h)
	if err := encodePrototype(w, h, proto); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
