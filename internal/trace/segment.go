package trace

import (
	"fmt"

	"vaultFees/internal/model"
)

const (
	opJumpDest = "JUMPDEST"
	opJump     = "JUMP"
)

// Span is the inclusive step range of one report inside a transaction trace.
type Span struct {
	Start int
	End   int
}

// Split cuts a transaction trace into one segment per report.
//
// layouts holds the layout of each report's vault in log order. Segments are
// located left to right: each starts at the entry JUMPDEST of its layout and
// ends at the first exit or early exit JUMP at the same call depth.
func Split(steps model.Trace, layouts []*Layout) ([]model.Trace, error) {
	spans, err := Locate(steps, layouts)
	if err != nil {
		return nil, err
	}
	out := make([]model.Trace, len(spans))
	for i, span := range spans {
		out[i] = steps[span.Start : span.End+1]
	}
	return out, nil
}

// Locate returns the step spans Split would cut.
func Locate(steps model.Trace, layouts []*Layout) ([]Span, error) {
	spans := make([]Span, 0, len(layouts))
	cursor := 0
	for i, layout := range layouts {
		start := -1
		for j := cursor; j < len(steps); j++ {
			if steps[j].Op == opJumpDest && steps[j].PC == layout.EntryPC {
				start = j
				break
			}
		}
		if start < 0 {
			return nil, &model.StructuralError{
				Op:     "split",
				PC:     layout.EntryPC,
				Detail: fmt.Sprintf("entry of report %d (%s) not found", i, layout.Version),
			}
		}

		depth := steps[start].Depth
		end := -1
		for j := start + 1; j < len(steps); j++ {
			s := steps[j]
			if s.Op != opJump || s.Depth != depth {
				continue
			}
			if s.PC == layout.ExitPC || (layout.HasEarlyExit() && s.PC == layout.EarlyExitPC) {
				end = j
				break
			}
		}
		if end < 0 {
			return nil, &model.StructuralError{
				Op:     "split",
				PC:     layout.ExitPC,
				Detail: fmt.Sprintf("exit of report %d (%s) not found", i, layout.Version),
			}
		}

		spans = append(spans, Span{Start: start, End: end})
		cursor = end + 1
	}
	return spans, nil
}
