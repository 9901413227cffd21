package trace

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

// Recover rebuilds the fee breakdown of a report from its trace segment.
func Recover(segment model.Trace, layout *Layout, v version.Variant) (model.Fees, error) {
	if len(segment) == 0 {
		return model.Fees{}, &model.StructuralError{Op: "recover", Detail: "empty segment"}
	}
	steps := indexByPC(segment)

	if _, ok := steps[layout.SnapshotPC]; !ok {
		return recoverEarlyExit(steps, layout, v)
	}

	values, err := readAll(steps, layout.Reads)
	if err != nil {
		return model.Fees{}, err
	}

	fees := model.Fees{
		Gain:          values[QuantityGain],
		StrategistFee: values[QuantityStrategistFee],
	}

	switch layout.Recovery {
	case RecoveryTwoPoint:
		before := values[QuantityGovernanceFeeBefore]
		after := values[QuantityGovernanceFeeAfter]
		if after.Cmp(before) < 0 {
			return model.Fees{}, &model.StructuralError{
				Op:     "recover",
				Detail: fmt.Sprintf("governance fee decreased from %s to %s", before, after),
			}
		}
		fees.ManagementFee = before
		fees.PerformanceFee = new(big.Int).Sub(after, before)
	default:
		fees.ManagementFee = values[QuantityManagementFee]
		fees.PerformanceFee = values[QuantityPerformanceFee]
	}

	if d, ok := values[QuantityDuration]; ok {
		if !d.IsUint64() {
			return model.Fees{}, &model.StructuralError{Op: "recover", Detail: fmt.Sprintf("duration %s out of range", d)}
		}
		fees.Duration = model.Uint64Ptr(d.Uint64())
	}

	if v.Clamp {
		fees.Clamp()
	}
	return fees, nil
}

func recoverEarlyExit(steps map[uint64]*model.Step, layout *Layout, v version.Variant) (model.Fees, error) {
	if !layout.HasEarlyExit() {
		return model.Fees{}, &model.StructuralError{Op: "recover", PC: layout.SnapshotPC, Detail: "snapshot not in segment"}
	}
	if _, ok := steps[layout.EarlyExitPC]; !ok {
		return model.Fees{}, &model.StructuralError{Op: "recover", PC: layout.SnapshotPC, Detail: "neither snapshot nor early exit in segment"}
	}

	values, err := readAll(steps, layout.EarlyExit)
	if err != nil {
		return model.Fees{}, err
	}

	fees := model.ZeroFees()
	if gain, ok := values[QuantityGain]; ok {
		fees.Gain = gain
	}
	for q, value := range values {
		switch q {
		case QuantityManagementFee:
			fees.ManagementFee = value
		case QuantityPerformanceFee:
			fees.PerformanceFee = value
		case QuantityStrategistFee:
			fees.StrategistFee = value
		}
	}
	if v.Clamp {
		fees.Clamp()
	}
	return fees, nil
}

// indexByPC keeps the first step of each program counter at the segment's call depth.
func indexByPC(segment model.Trace) map[uint64]*model.Step {
	depth := segment[0].Depth
	out := make(map[uint64]*model.Step)
	for i := range segment {
		s := &segment[i]
		if s.Depth != depth {
			continue
		}
		if _, ok := out[s.PC]; !ok {
			out[s.PC] = s
		}
	}
	return out
}

func readAll(steps map[uint64]*model.Step, reads []Read) (map[Quantity]*big.Int, error) {
	out := make(map[Quantity]*big.Int, len(reads))
	for _, r := range reads {
		step, ok := steps[r.PC]
		if !ok {
			return nil, &model.StructuralError{Op: "recover", PC: r.PC, Detail: fmt.Sprintf("%s: pc not in segment", r.Quantity)}
		}
		word, err := load(step, r.Loc, r.Slot)
		if err != nil {
			return nil, &model.StructuralError{Op: "recover", PC: r.PC, Detail: fmt.Sprintf("%s: %v", r.Quantity, err)}
		}
		out[r.Quantity] = word.ToBig()
	}
	return out, nil
}

func load(step *model.Step, loc Location, slot int) (*uint256.Int, error) {
	var words []uint256.Int
	switch loc {
	case LocationStack:
		words = step.Stack
	case LocationMemory:
		words = step.Memory
	default:
		return nil, fmt.Errorf("unknown location %q", loc)
	}
	if slot >= len(words) {
		return nil, fmt.Errorf("%s slot %d not allocated (%d words)", loc, slot, len(words))
	}
	return &words[slot], nil
}
