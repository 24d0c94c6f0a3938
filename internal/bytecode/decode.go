package bytecode

var magic = [4]byte{0x1B, 'L', 'u', 'a'}

func decodeHeader(r *Reader) (Header, error) {
	magicBytes, err := r.Bytes(4)
	if err != nil {
		return Header{}, err
	}
	for i, b := range magicBytes {
		if b != magic[i] {
			return Header{}, newFormatError("bad magic bytes %x", magicBytes)
		}
	}

	version, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	if version != 0x51 {
		return Header{}, newFormatError("unsupported version byte %#x", version)
	}

	format, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	if format != 0 {
		return Header{}, newFormatError("unsupported format byte %#x", format)
	}

	endianness, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	if endianness != 1 {
		return Header{}, newFormatError("big-endian modules are not supported")
	}

	intSize, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	sizeTSize, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	instrSize, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	numberSize, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	integral, err := r.Byte()
	if err != nil {
		return Header{}, err
	}

	h := Header{IntSize: intSize, SizeTSize: sizeTSize, InstructionSize: instrSize, NumberSize: numberSize}
	if h != DefaultHeader {
		return Header{}, newFormatError("unsupported header sizes %+v", h)
	}
	if integral != 0 {
		return Header{}, newFormatError("integral Lua numbers are not supported")
	}
	return h, nil
}

func decodeVector[V any](r *Reader, h Header, read func(*Reader, Header) (V, error)) ([]V, error) {
	n, err := r.Int(int(h.IntSize))
	if err != nil {
		return nil, err
	}
	list := make([]V, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := read(r, h)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func decodeConstant(r *Reader, h Header) (Constant, error) {
	tag, err := r.Byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return ConstNil{}, nil
	case 1:
		b, err := r.Byte()
		if err != nil {
			return nil, err
		}
		return ConstBool(b != 0), nil
	case 3:
		n, err := r.Number(int(h.IntSize))
		if err != nil {
			return nil, err
		}
		return ConstNumber(n), nil
	case 4:
		s, err := r.String(int(h.SizeTSize))
		if err != nil {
			return nil, err
		}
		return ConstString(s), nil
	default:
		return nil, newFormatError("unknown constant tag %d", tag)
	}
}

func decodeLocal(r *Reader, h Header) (LocalVar, error) {
	name, err := r.String(int(h.SizeTSize))
	if err != nil {
		return LocalVar{}, err
	}
	start, err := r.Int(int(h.IntSize))
	if err != nil {
		return LocalVar{}, err
	}
	end, err := r.Int(int(h.IntSize))
	if err != nil {
		return LocalVar{}, err
	}
	return LocalVar{Name: name, StartPC: start, EndPC: end}, nil
}

func decodePrototype(r *Reader, h Header) (*Prototype, error) {
	source, err := r.String(int(h.SizeTSize))
	if err != nil {
		return nil, err
	}
	lineDefined, err := r.Int(int(h.IntSize))
	if err != nil {
		return nil, err
	}
	lastLineDefined, err := r.Int(int(h.IntSize))
	if err != nil {
		return nil, err
	}
	numUpvalues, err := r.Byte()
	if err != nil {
		return nil, err
	}
	numParams, err := r.Byte()
	if err != nil {
		return nil, err
	}
	varargFlag, err := r.Byte()
	if err != nil {
		return nil, err
	}
	maxStackSize, err := r.Byte()
	if err != nil {
		return nil, err
	}

	rawInstrs, err := decodeVector(r, h, func(r *Reader, h Header) (uint32, error) {
		return r.Int(int(h.InstructionSize))
	})
	if err != nil {
		return nil, err
	}
	instructions := make([]*Instruction, 0, len(rawInstrs))
	for i := 0; i < len(rawInstrs); i++ {
		word := rawInstrs[i]
		var next *uint32
		if i+1 < len(rawInstrs) {
			next = &rawInstrs[i+1]
		}
		instr, consumedNext, err := decodeInstruction(word, next)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instr)
		if consumedNext {
			i++ // the next raw word was SETLIST's count extension, not its own instruction
		}
	}

	constants, err := decodeVector(r, h, decodeConstant)
	if err != nil {
		return nil, err
	}

	prototypes, err := decodeVector(r, h, decodePrototype)
	if err != nil {
		return nil, err
	}

	sourceLines, err := decodeVector(r, h, func(r *Reader, h Header) (uint32, error) {
		return r.Int(int(h.IntSize))
	})
	if err != nil {
		return nil, err
	}

	locals, err := decodeVector(r, h, decodeLocal)
	if err != nil {
		return nil, err
	}

	upvalNames, err := decodeVector(r, h, func(r *Reader, h Header) (string, error) {
		return r.String(int(h.SizeTSize))
	})
	if err != nil {
		return nil, err
	}

	return &Prototype{
		Source:          source,
		LineDefined:     lineDefined,
		LastLineDefined: lastLineDefined,
		NumUpvalues:     numUpvalues,
		NumParams:       numParams,
		VarargFlag:      varargFlag,
		MaxStackSize:    maxStackSize,
		Instructions:    instructions,
		Constants:       constants,
		Prototypes:      prototypes,
		SourceLines:     &sourceLines,
		Locals:          &locals,
		UpvalueNames:    &upvalNames,
	}, nil
}

// Deserialize parses a module buffer into a header and its root prototype.
func Deserialize(buf []byte) (Header, *Prototype, error) {
	r := NewReader(buf)
	h, err := decodeHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	proto, err := decodePrototype(r, h)
	if err != nil {
		return Header{}, nil, err
	}
	return h, proto, nil
}
