package ir

import (
	"testing"

	"github.com/lua-obf/luaobf/internal/bytecode"
)

func newTestChunk() *bytecode.Prototype {
	return &bytecode.Prototype{
		Constants: []bytecode.Constant{bytecode.ConstString("hello"), bytecode.ConstNumber(10)},
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrLoadK{A: 0, K: 0}),
			bytecode.NewInstruction(&bytecode.InstrGetGlobal{A: 1, K: 1}),
			bytecode.NewInstruction(&bytecode.InstrReturn{A: 0, B: 1}),
		},
	}
}

func TestGetOrAddConstantDeduplicates(t *testing.T) {
	ctx := NewContext(bytecode.DefaultHeader, newTestChunk())
	ctx.MapConstants()

	idx := ctx.GetOrAddConstant(bytecode.ConstString("hello"))
	if idx != 0 {
		t.Fatalf("expected existing constant index 0, got %d", idx)
	}
	if len(ctx.Chunk.Constants) != 2 {
		t.Fatalf("expected no new constant to be appended, got %d constants", len(ctx.Chunk.Constants))
	}
}

func TestGetOrAddConstantAppendsNew(t *testing.T) {
	ctx := NewContext(bytecode.DefaultHeader, newTestChunk())
	ctx.MapConstants()

	idx := ctx.GetOrAddConstant(bytecode.ConstNumber(99))
	if idx != 2 {
		t.Fatalf("expected new constant at index 2, got %d", idx)
	}
	if len(ctx.Chunk.Constants) != 3 {
		t.Fatalf("expected 3 constants after append, got %d", len(ctx.Chunk.Constants))
	}
}

func TestAddConstantShiftsExistingReferences(t *testing.T) {
	ctx := NewContext(bytecode.DefaultHeader, newTestChunk())
	ctx.MapConstants()

	// Insert a new constant at index 0, ahead of both existing references.
	ctx.AddConstant(0, bytecode.ConstBool(true))

	loadK := ctx.Chunk.Instructions[0].Decoded.(*bytecode.InstrLoadK)
	if loadK.K != 1 {
		t.Fatalf("expected LoadK's constant index to shift to 1, got %d", loadK.K)
	}
	getGlobal := ctx.Chunk.Instructions[1].Decoded.(*bytecode.InstrGetGlobal)
	if getGlobal.K != 2 {
		t.Fatalf("expected GetGlobal's constant index to shift to 2, got %d", getGlobal.K)
	}
}

func TestAddInstructionShiftsConstantReferenceIPs(t *testing.T) {
	ctx := NewContext(bytecode.DefaultHeader, newTestChunk())
	ctx.MapConstants()

	// Insert a no-op-equivalent Move ahead of the GetGlobal at index 1.
	ctx.AddInstruction(1, bytecode.NewInstruction(&bytecode.InstrMove{A: 2, B: 2}))

	getGlobal, ok := ctx.Chunk.Instructions[2].Decoded.(*bytecode.InstrGetGlobal)
	if !ok {
		t.Fatalf("expected GetGlobal to have shifted to index 2")
	}
	if getGlobal.K != 1 {
		t.Fatalf("expected GetGlobal's constant index to remain 1 after shift, got %d", getGlobal.K)
	}
}

func TestFindInstructionAtTracksStableID(t *testing.T) {
	ctx := NewContext(bytecode.DefaultHeader, newTestChunk())
	ctx.MapConstants()

	target := ctx.Chunk.Instructions[2]
	id := ctx.AddInstruction(0, bytecode.NewInstruction(&bytecode.InstrMove{A: 5, B: 5}))
	if id == target.ID {
		t.Fatalf("new instruction should not reuse an existing stable ID")
	}

	pos, ok := ctx.FindInstructionAt(target.ID)
	if !ok {
		t.Fatalf("expected to find the Return instruction by its stable ID")
	}
	if ctx.Chunk.Instructions[pos] != target {
		t.Fatalf("FindInstructionAt returned the wrong position after insertion shift")
	}
}

func TestMaxIPReflectsCurrentLength(t *testing.T) {
	ctx := NewContext(bytecode.DefaultHeader, newTestChunk())
	if ctx.MaxIP() != 3 {
		t.Fatalf("expected MaxIP 3, got %d", ctx.MaxIP())
	}
	ctx.AddInstruction(ctx.MaxIP(), bytecode.NewInstruction(&bytecode.InstrReturn{A: 0, B: 0}))
	if ctx.MaxIP() != 4 {
		t.Fatalf("expected MaxIP 4 after append, got %d", ctx.MaxIP())
	}
}
