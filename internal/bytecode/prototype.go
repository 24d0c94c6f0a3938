package bytecode

// Header records the fixed-size fields from the module header that
// subsequent integer/string/number reads need to know the width of. Every
// field is checked against this VM generation's single accepted value at
// decode time; see Deserialize.
type Header struct {
	IntSize         uint8
	SizeTSize       uint8
	InstructionSize uint8
	NumberSize      uint8
}

// DefaultHeader is the only header this VM generation accepts.
var DefaultHeader = Header{IntSize: 4, SizeTSize: 4, InstructionSize: 4, NumberSize: 8}

// LocalVar is one entry of a prototype's optional local-variable debug
// table.
type LocalVar struct {
	Name    string
	StartPC uint32
	EndPC   uint32
}

// Prototype is the compiled representation of one Lua function: its code,
// constants, nested function prototypes, and optional debug info. Nested
// closures reference Prototypes by index into Prototypes; instructions
// that reference constants index into Constants.
type Prototype struct {
	Source          string
	LineDefined     uint32
	LastLineDefined uint32
	NumUpvalues     uint8
	NumParams       uint8
	VarargFlag      uint8
	MaxStackSize    uint8

	Instructions []*Instruction
	Constants    []Constant
	Prototypes   []*Prototype

	// Debug-info sequences. nil means absent (dropped, per this VM
	// generation's IR construction policy); a non-nil empty slice means
	// present but empty. Preserved only insofar as the caller keeps them
	// populated — the IR context clears all three on construction.
	SourceLines *[]uint32
	Locals      *[]LocalVar
	UpvalueNames *[]string
}

// NewPrototype returns an empty prototype with debug sequences present but
// empty, matching the shape the reference compiler emits for a from-scratch
// function body.
func NewPrototype() *Prototype {
	lines := []uint32{}
	locals := []LocalVar{}
	upvals := []string{}
	return &Prototype{
		Source:       "@obfuscated",
		VarargFlag:   0,
		MaxStackSize: 2,
		SourceLines:  &lines,
		Locals:       &locals,
		UpvalueNames: &upvals,
	}
}
