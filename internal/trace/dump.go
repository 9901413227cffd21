package trace

import (
	"math/big"

	"vaultFees/internal/model"
)

// Snapshot holds the named memory values of a segment at one program counter.
// A nil value means the slot was not allocated yet.
type Snapshot struct {
	PC     uint64
	Op     string
	Values map[string]*big.Int
}

// Dump pivots a segment to the layout's named memory slots at every known program counter.
func Dump(segment model.Trace, layout *Layout) []Snapshot {
	if len(segment) == 0 {
		return nil
	}
	known := make(map[uint64]bool, len(layout.ProgramCounters))
	for _, pc := range layout.ProgramCounters {
		known[pc] = true
	}

	depth := segment[0].Depth
	var out []Snapshot
	for i := range segment {
		s := &segment[i]
		if s.Depth != depth || !known[s.PC] {
			continue
		}
		snap := Snapshot{PC: s.PC, Op: s.Op, Values: make(map[string]*big.Int, len(layout.Memory))}
		for name, slot := range layout.Memory {
			if word, err := load(s, LocationMemory, slot); err == nil {
				snap.Values[name] = word.ToBig()
			} else {
				snap.Values[name] = nil
			}
		}
		out = append(out, snap)
	}
	return out
}
