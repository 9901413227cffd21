package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"vaultFees/internal/model"
)

type structLog struct {
	PC     uint64   `json:"pc"`
	Op     string   `json:"op"`
	Depth  int      `json:"depth"`
	Stack  []string `json:"stack"`
	Memory []string `json:"memory"`
}

type structTrace struct {
	Failed     bool        `json:"failed"`
	StructLogs []structLog `json:"structLogs"`
}

// DecodeStructLogs converts a debug_traceTransaction struct logger result into steps.
func DecodeStructLogs(raw []byte) (model.Trace, error) {
	var res structTrace
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode struct logs: %w", err)
	}

	steps := make(model.Trace, len(res.StructLogs))
	for i, l := range res.StructLogs {
		s := model.Step{PC: l.PC, Op: l.Op, Depth: l.Depth}
		var err error
		if s.Stack, err = decodeWords(l.Stack); err != nil {
			return nil, fmt.Errorf("step %d stack: %w", i, err)
		}
		if s.Memory, err = decodeWords(l.Memory); err != nil {
			return nil, fmt.Errorf("step %d memory: %w", i, err)
		}
		steps[i] = s
	}
	return steps, nil
}

func decodeWords(in []string) ([]uint256.Int, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]uint256.Int, len(in))
	for i, w := range in {
		w = strings.TrimPrefix(w, "0x")
		if len(w)%2 == 1 {
			w = "0" + w
		}
		b, err := hex.DecodeString(w)
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		if len(b) > 32 {
			return nil, fmt.Errorf("word %d: %d bytes", i, len(b))
		}
		out[i].SetBytes(b)
	}
	return out, nil
}
