package trace

import (
	"github.com/holiman/uint256"

	"vaultFees/internal/model"
)

func words(n int, set map[int]uint64) []uint256.Int {
	out := make([]uint256.Int, n)
	for slot, v := range set {
		out[slot].SetUint64(v)
	}
	return out
}

func step(pc uint64, op string, depth int) model.Step {
	return model.Step{PC: pc, Op: op, Depth: depth}
}

func withMemory(s model.Step, set map[int]uint64) model.Step {
	s.Memory = words(18, set)
	return s
}

func withStack(s model.Step, set map[int]uint64) model.Step {
	s.Stack = words(4, set)
	return s
}

func noise(n int, depth int) model.Trace {
	out := make(model.Trace, n)
	for i := range out {
		out[i] = step(uint64(1+i), "PUSH1", depth)
	}
	return out
}

func mustTable() Table {
	table, err := DefaultTable()
	if err != nil {
		panic(err)
	}
	return table
}
