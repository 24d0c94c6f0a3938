package obfuscate

import (
	"testing"

	"github.com/lua-obf/luaobf/internal/bytecode"
	"github.com/lua-obf/luaobf/internal/telemetry"
)

func sourceModule(t *testing.T) []byte {
	t.Helper()
	proto := &bytecode.Prototype{
		Source:       "@t.lua",
		NumParams:    0,
		MaxStackSize: 2,
		Constants:    []bytecode.Constant{bytecode.ConstNumber(7)},
		Instructions: []*bytecode.Instruction{
			bytecode.NewInstruction(&bytecode.InstrLoadK{A: 0, K: 0}),
			bytecode.NewInstruction(&bytecode.InstrReturn{A: 0, B: 1}),
		},
	}
	buf, err := bytecode.Serialize(bytecode.DefaultHeader, proto)
	if err != nil {
		t.Fatalf("failed to build test fixture module: %v", err)
	}
	return buf
}

func TestFlattenRoundTripsThroughCodec(t *testing.T) {
	out, err := Flatten(sourceModule(t), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, proto, err := bytecode.Deserialize(out)
	if err != nil {
		t.Fatalf("flattened output did not re-parse: %v", err)
	}
	if len(proto.Instructions) <= 2 {
		t.Fatalf("expected the flattened prototype to gain dispatcher instructions, got %d", len(proto.Instructions))
	}
}

func TestFlattenRejectsUnsupportedTarget(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetVM = "lua54"
	if _, err := Flatten(sourceModule(t), opts, nil); err == nil {
		t.Fatalf("expected an error for an unsupported target VM")
	}
}

func TestFlattenSkipsPassWhenDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.FlattenControlFlow = false

	src := sourceModule(t)
	out, err := Flatten(src, opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, proto, err := bytecode.Deserialize(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proto.Instructions) != 2 {
		t.Fatalf("expected the original 2 instructions to survive untouched, got %d", len(proto.Instructions))
	}
}

func TestFlattenPopulatesStats(t *testing.T) {
	stats := &telemetry.Stats{}
	if _, err := Flatten(sourceModule(t), DefaultOptions(), stats); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PrototypesVisited != 1 {
		t.Fatalf("expected 1 prototype visited, got %d", stats.PrototypesVisited)
	}
	if stats.InstructionsEmitted <= 2 {
		t.Fatalf("expected instructions emitted to reflect the flattened dispatcher, got %d", stats.InstructionsEmitted)
	}
}
