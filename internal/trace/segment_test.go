package trace

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultFees/internal/model"
)

// report builds the steps of one fee assessment at depth 1 ending at exit.
func report(layout *Layout, exit uint64, body int) model.Trace {
	out := model.Trace{step(layout.EntryPC, opJumpDest, 1)}
	out = append(out, noise(body, 1)...)
	return append(out, step(exit, opJump, 1))
}

func TestSplitMultipleReports(t *testing.T) {
	layout := mustTable()["0.4.0"]

	var steps model.Trace
	steps = append(steps, noise(3, 1)...)
	steps = append(steps, report(layout, layout.ExitPC, 4)...)
	steps = append(steps, noise(2, 1)...)
	steps = append(steps, report(layout, layout.EarlyExitPC, 1)...)
	steps = append(steps, report(layout, layout.ExitPC, 0)...)

	segments, err := Split(steps, []*Layout{layout, layout, layout})
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Len(t, segments[0], 6)
	assert.Len(t, segments[1], 3)
	assert.Len(t, segments[2], 2)
	assert.Equal(t, layout.EarlyExitPC, segments[1][len(segments[1])-1].PC)
	for _, seg := range segments {
		assert.Equal(t, opJumpDest, seg[0].Op)
		assert.Equal(t, opJump, seg[len(seg)-1].Op)
	}
}

func TestSplitIgnoresExitInNestedCall(t *testing.T) {
	layout := mustTable()["0.3.5"]

	steps := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		step(layout.ExitPC, opJump, 2),
		step(layout.ExitPC, "JUMPI", 1),
		step(layout.ExitPC, opJump, 1),
	}
	spans, err := Locate(steps, []*Layout{layout})
	require.NoError(t, err)
	assert.Equal(t, []Span{{Start: 0, End: 3}}, spans)
}

func TestSplitWithoutEarlyExitIgnoresEarlyPC(t *testing.T) {
	legacy := mustTable()["0.3.5"]
	modern := mustTable()["0.4.0"]

	steps := model.Trace{
		step(legacy.EntryPC, opJumpDest, 1),
		step(modern.EarlyExitPC, opJump, 1),
	}
	_, err := Split(steps, []*Layout{legacy})
	require.Error(t, err)
	assert.True(t, model.IsStructural(err))
}

func TestSplitMissingEntry(t *testing.T) {
	layout := mustTable()["0.4.1"]

	steps := append(noise(5, 1), report(layout, layout.ExitPC, 2)...)
	_, err := Split(steps, []*Layout{layout, layout})
	require.Error(t, err)

	var se *model.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, layout.EntryPC, se.PC)
	assert.Contains(t, se.Detail, "entry of report 1")
}

func TestSplitMissingExit(t *testing.T) {
	layout := mustTable()["0.3.3"]

	steps := model.Trace{step(layout.EntryPC, opJumpDest, 1)}
	steps = append(steps, noise(4, 1)...)
	_, err := Split(steps, []*Layout{layout})

	var se *model.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, layout.ExitPC, se.PC)
}

func TestSplitProperties(t *testing.T) {
	layout := mustTable()["0.4.2"]

	properties := gopter.NewProperties(nil)
	properties.Property("segments are ordered, disjoint and complete", prop.ForAll(
		func(gaps []uint8) bool {
			var steps model.Trace
			for i, gap := range gaps {
				steps = append(steps, noise(int(gap%7), 1)...)
				exit := layout.ExitPC
				if i%2 == 1 {
					exit = layout.EarlyExitPC
				}
				steps = append(steps, report(layout, exit, int(gap%5))...)
			}
			layouts := make([]*Layout, len(gaps))
			for i := range layouts {
				layouts[i] = layout
			}

			spans, err := Locate(steps, layouts)
			if err != nil || len(spans) != len(gaps) {
				return false
			}
			for i, span := range spans {
				if span.Start > span.End {
					return false
				}
				if i > 0 && spans[i-1].End >= span.Start {
					return false
				}
				if steps[span.Start].PC != layout.EntryPC || steps[span.End].Op != opJump {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()).SuchThat(func(v []uint8) bool { return len(v) > 0 }),
	))
	properties.TestingRun(t)
}
