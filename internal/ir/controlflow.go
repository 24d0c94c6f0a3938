package ir

import (
	"sort"

	"github.com/lua-obf/luaobf/internal/bytecode"
)

// TargetKind distinguishes a resolved intra-prototype branch target from
// one that could not be resolved to any block leader.
type TargetKind int

const (
	TargetLabel TargetKind = iota
	TargetUndefined
)

// Target is a block's successor, as reckoned from its terminator
// instruction (if any). Blocks with no terminator (pure fallthrough) carry
// Label(own index + 1), computed the same way as any other destination.
type Target struct {
	Kind   TargetKind
	Label  uint32
	Offset int32 // only meaningful when Kind == TargetUndefined
}

// Block is a maximal straight-line run of instruction indices together with
// its resolved successor.
type Block struct {
	Code   []int
	Target Target
}

// MapControlFlow splits code into basic blocks at leader points induced by
// branch-producing opcodes, and resolves each block's terminator to a
// label into the returned block list.
func MapControlFlow(code []*bytecode.Instruction) []Block {
	leaders := computeLeaders(code)
	return splitAtLeaders(code, leaders)
}

func computeLeaders(code []*bytecode.Instruction) []int {
	set := map[int]struct{}{0: {}}
	n := len(code)

	mark := func(pc int) {
		if pc >= 0 && pc <= n {
			set[pc] = struct{}{}
		}
	}

	for pc, instr := range code {
		switch instr.Op {
		case bytecode.OpTest, bytecode.OpTestSet, bytecode.OpEq, bytecode.OpLt, bytecode.OpLe:
			mark(pc + 1)
			mark(pc + 2)
		case bytecode.OpJump:
			mark(pc)
			mark(pc + 1)
		case bytecode.OpForPrep, bytecode.OpForLoop:
			mark(pc)
			mark(pc + 1)
		case bytecode.OpReturn:
			mark(pc + 1)
		}
	}

	leaders := make([]int, 0, len(set))
	for pc := range set {
		leaders = append(leaders, pc)
	}
	sort.Ints(leaders)
	return leaders
}

func splitAtLeaders(code []*bytecode.Instruction, leaders []int) []Block {
	blocks := make([]Block, 0, len(leaders))
	n := len(code)

	// blockStart[pc] -> block index, for resolving jump destinations.
	blockStart := make(map[int]int, len(leaders))
	for i, l := range leaders {
		if l < n {
			blockStart[l] = i
		}
	}

	for i, start := range leaders {
		end := n
		if i+1 < len(leaders) {
			end = leaders[i+1]
		}
		if start >= end {
			continue
		}
		codeIdx := make([]int, 0, end-start)
		for pc := start; pc < end; pc++ {
			codeIdx = append(codeIdx, pc)
		}

		target := resolveTarget(code, codeIdx, end, blockStart)
		blocks = append(blocks, Block{Code: codeIdx, Target: target})
	}

	return blocks
}

// resolveTarget inspects the block's terminator (last instruction) and
// computes where control goes next. Non-branch terminators fall through to
// the following instruction, i.e. end (the first index of the next block).
func resolveTarget(code []*bytecode.Instruction, blockCode []int, end int, blockStart map[int]int) Target {
	last := code[blockCode[len(blockCode)-1]]

	offset := int32(0)
	hasOffset := false
	switch d := last.Decoded.(type) {
	case *bytecode.InstrJump:
		offset = d.Offset
		hasOffset = true
	case *bytecode.InstrForPrep:
		offset = d.Offset
		hasOffset = true
	case *bytecode.InstrForLoop:
		offset = d.Offset
		hasOffset = true
	}

	if !hasOffset {
		if idx, ok := blockStart[end]; ok {
			return Target{Kind: TargetLabel, Label: uint32(idx)}
		}
		return Target{Kind: TargetUndefined, Offset: 0}
	}

	dest := end + int(offset)
	if idx, ok := blockStart[dest]; ok {
		return Target{Kind: TargetLabel, Label: uint32(idx)}
	}
	return Target{Kind: TargetUndefined, Offset: offset}
}
