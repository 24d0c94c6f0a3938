package bytecode

import "testing"

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func samplePrototype() *Prototype {
	p := NewPrototype()
	p.NumParams = 1
	p.MaxStackSize = 3
	p.Constants = []Constant{
		ConstString("hello"),
		ConstNumber(42),
		ConstBool(true),
		ConstNil{},
		ConstString(""),
	}
	p.Instructions = []*Instruction{
		NewInstruction(&InstrLoadK{A: 0, K: 0}),
		NewInstruction(&InstrGetGlobal{A: 1, K: 1}),
		NewInstruction(&InstrReturn{A: 0, B: 1}),
	}
	nested := NewPrototype()
	nested.Instructions = []*Instruction{
		NewInstruction(&InstrReturn{A: 0, B: 1}),
	}
	p.Prototypes = []*Prototype{nested}
	return p
}

func TestRoundTripPreservesStructure(t *testing.T) {
	orig := samplePrototype()

	buf, err := Serialize(DefaultHeader, orig)
	assertNoErr(t, err)

	h, decoded, err := Deserialize(buf)
	assertNoErr(t, err)

	if h != DefaultHeader {
		t.Fatalf("header mismatch: got %+v", h)
	}
	if len(decoded.Instructions) != len(orig.Instructions) {
		t.Fatalf("instruction count mismatch: got %d want %d", len(decoded.Instructions), len(orig.Instructions))
	}
	for i, ins := range decoded.Instructions {
		if ins.Op != orig.Instructions[i].Op {
			t.Errorf("instruction %d opcode mismatch: got %v want %v", i, ins.Op, orig.Instructions[i].Op)
		}
	}
	if len(decoded.Constants) != len(orig.Constants) {
		t.Fatalf("constant count mismatch: got %d want %d", len(decoded.Constants), len(orig.Constants))
	}
	for i, c := range decoded.Constants {
		if !c.Equal(orig.Constants[i]) {
			t.Errorf("constant %d mismatch: got %#v want %#v", i, c, orig.Constants[i])
		}
	}
	if len(decoded.Prototypes) != 1 {
		t.Fatalf("expected 1 nested prototype, got %d", len(decoded.Prototypes))
	}
}

func TestRoundTripBytesAreStable(t *testing.T) {
	orig := samplePrototype()

	buf1, err := Serialize(DefaultHeader, orig)
	assertNoErr(t, err)

	_, decoded, err := Deserialize(buf1)
	assertNoErr(t, err)

	buf2, err := Serialize(DefaultHeader, decoded)
	assertNoErr(t, err)

	if len(buf1) != len(buf2) {
		t.Fatalf("re-serialized length changed: %d vs %d", len(buf1), len(buf2))
	}
	for i := range buf1 {
		if buf1[i] != buf2[i] {
			t.Fatalf("byte %d differs: %#x vs %#x", i, buf1[i], buf2[i])
		}
	}
}

// A SETLIST whose real count (600) doesn't fit the 9-bit C field must
// round-trip through its wire-level extension word rather than being
// truncated into C or leaving a spurious extra decoded instruction behind.
func TestRoundTripPreservesExtendedSetList(t *testing.T) {
	orig := NewPrototype()
	orig.NumParams = 0
	orig.MaxStackSize = 5
	orig.Instructions = []*Instruction{
		NewInstruction(&InstrSetList{A: 0, B: 0, Count: 600, Extended: true}),
		NewInstruction(&InstrReturn{A: 0, B: 1}),
	}

	buf, err := Serialize(DefaultHeader, orig)
	assertNoErr(t, err)

	_, decoded, err := Deserialize(buf)
	assertNoErr(t, err)

	if len(decoded.Instructions) != 2 {
		t.Fatalf("expected 2 logical instructions (no spurious extension-word instruction), got %d", len(decoded.Instructions))
	}
	setList, ok := decoded.Instructions[0].Decoded.(*InstrSetList)
	if !ok {
		t.Fatalf("expected the first instruction to decode as *InstrSetList, got %T", decoded.Instructions[0].Decoded)
	}
	if setList.Count != 600 {
		t.Fatalf("expected count 600 to survive via the extension word, got %d", setList.Count)
	}
	if decoded.Instructions[1].Op != OpReturn {
		t.Fatalf("expected the Return to survive unshifted after the extension word, got %v", decoded.Instructions[1].Op)
	}

	reencoded, err := Serialize(DefaultHeader, decoded)
	assertNoErr(t, err)
	if len(buf) != len(reencoded) {
		t.Fatalf("re-serialized length changed: %d vs %d", len(buf), len(reencoded))
	}
	for i := range buf {
		if buf[i] != reencoded[i] {
			t.Fatalf("byte %d differs: %#x vs %#x", i, buf[i], reencoded[i])
		}
	}
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 12)
	copy(buf, []byte{0, 0, 0, 0})
	_, _, err := Deserialize(buf)
	if err == nil {
		t.Fatal("expected error for bad magic bytes")
	}
}

func TestDeserializeRejectsBigEndian(t *testing.T) {
	h := DefaultHeader
	w := NewWriter()
	w.RawBytes(magic[:])
	w.Byte(0x51)
	w.Byte(0)
	w.Byte(0) // big-endian
	w.Byte(h.IntSize)
	w.Byte(h.SizeTSize)
	w.Byte(h.InstructionSize)
	w.Byte(h.NumberSize)
	w.Byte(0)

	_, _, err := Deserialize(w.Bytes())
	if err == nil {
		t.Fatal("expected error for big-endian module")
	}
}

func TestEmptyStringRoundTrips(t *testing.T) {
	w := NewWriter()
	w.String("", 4)
	r := NewReader(w.Bytes())
	s, err := r.String(4)
	assertNoErr(t, err)
	if s != "" {
		t.Fatalf("expected empty string, got %q", s)
	}
	// Empty string must cost exactly the length prefix, no NUL byte.
	if len(w.Bytes()) != 4 {
		t.Fatalf("expected 4-byte encoding for empty string, got %d bytes", len(w.Bytes()))
	}
}

func TestNonEmptyStringRoundTrips(t *testing.T) {
	w := NewWriter()
	w.String("abc", 4)
	r := NewReader(w.Bytes())
	s, err := r.String(4)
	assertNoErr(t, err)
	if s != "abc" {
		t.Fatalf("expected %q, got %q", "abc", s)
	}
}
