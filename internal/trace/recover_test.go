package trace

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

func TestRecoverDirect(t *testing.T) {
	layout := mustTable()["0.4.0"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withMemory(step(layout.ExitPC, opJump, 2), map[int]uint64{11: 1, 14: 1}),
		withMemory(step(layout.ExitPC, opJump, 1), map[int]uint64{
			11: 1_000_000, 13: 86_400, 14: 5_000, 15: 100_000, 16: 200_000,
		}),
	}

	fees, err := Recover(segment, layout, version.MustLookup("0.4.0"))
	require.NoError(t, err)

	assert.Equal(t, "1000000", fees.Gain.String())
	assert.Equal(t, "5000", fees.ManagementFee.String())
	assert.Equal(t, "200000", fees.PerformanceFee.String())
	assert.Equal(t, "100000", fees.StrategistFee.String())
	require.NotNil(t, fees.Duration)
	assert.Equal(t, uint64(86_400), *fees.Duration)
}

func TestRecoverTwoPointWithDuration(t *testing.T) {
	layout := mustTable()["0.3.3"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withStack(step(19614, "SUB", 1), map[int]uint64{2: 43_200}),
		withMemory(step(19835, "MSTORE", 1), map[int]uint64{13: 700}),
		withMemory(step(19846, "MSTORE", 1), map[int]uint64{13: 2_700}),
		withMemory(step(layout.ExitPC, opJump, 1), map[int]uint64{11: 20_000, 13: 2_700, 14: 1_000}),
	}

	fees, err := Recover(segment, layout, version.MustLookup("0.3.3"))
	require.NoError(t, err)

	assert.Equal(t, "700", fees.ManagementFee.String())
	assert.Equal(t, "2000", fees.PerformanceFee.String())
	assert.Equal(t, "1000", fees.StrategistFee.String())
	assert.Equal(t, "20000", fees.Gain.String())
	require.NotNil(t, fees.Duration)
	assert.Equal(t, uint64(43_200), *fees.Duration)
}

func TestRecoverTwoPointWithoutDuration(t *testing.T) {
	layout := mustTable()["0.3.0"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withMemory(step(15655, "MSTORE", 1), map[int]uint64{13: 10}),
		withMemory(step(15666, "MSTORE", 1), map[int]uint64{13: 30}),
		withMemory(step(layout.ExitPC, opJump, 1), map[int]uint64{11: 400, 14: 5}),
	}

	fees, err := Recover(segment, layout, version.MustLookup("0.3.0"))
	require.NoError(t, err)
	assert.Nil(t, fees.Duration)
	assert.Equal(t, "20", fees.PerformanceFee.String())
}

func TestRecoverTwoPointDecreasingGovernanceFee(t *testing.T) {
	layout := mustTable()["0.3.1"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withMemory(step(15686, "MSTORE", 1), map[int]uint64{13: 30}),
		withMemory(step(15697, "MSTORE", 1), map[int]uint64{13: 10}),
		withMemory(step(layout.ExitPC, opJump, 1), map[int]uint64{11: 400, 14: 5}),
	}

	_, err := Recover(segment, layout, version.MustLookup("0.3.1"))
	assert.True(t, model.IsStructural(err))
}

func TestRecoverEarlyExit(t *testing.T) {
	layout := mustTable()["0.4.3"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withMemory(step(layout.EarlyExitPC, opJump, 1), map[int]uint64{}),
	}

	fees, err := Recover(segment, layout, version.MustLookup("0.4.3"))
	require.NoError(t, err)

	assert.Equal(t, 0, fees.Gain.Sign())
	assert.Equal(t, 0, fees.TotalFee().Sign())
	assert.Nil(t, fees.Duration)
}

func TestRecoverMissingSnapshot(t *testing.T) {
	layout := mustTable()["0.3.5"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		step(layout.EntryPC+1, "PUSH1", 1),
	}

	_, err := Recover(segment, layout, version.MustLookup("0.3.5"))
	var se *model.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, layout.SnapshotPC, se.PC)
}

func TestRecoverMissingIntermediatePC(t *testing.T) {
	layout := mustTable()["0.3.4"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withMemory(step(layout.ExitPC, opJump, 1), map[int]uint64{11: 1, 14: 1}),
	}

	_, err := Recover(segment, layout, version.MustLookup("0.3.4"))
	require.Error(t, err)
	assert.True(t, model.IsStructural(err))
	assert.False(t, model.IsRetryable(err))
}

func TestRecoverUnallocatedSlot(t *testing.T) {
	layout := mustTable()["0.4.1"]
	exit := step(layout.ExitPC, opJump, 1)
	exit.Memory = words(12, map[int]uint64{11: 5})
	segment := model.Trace{step(layout.EntryPC, opJumpDest, 1), exit}

	_, err := Recover(segment, layout, version.MustLookup("0.4.1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allocated")
}

func TestRecoverClampsFrom035(t *testing.T) {
	layout := mustTable()["0.3.5"]
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		withMemory(step(layout.ExitPC, opJump, 1), map[int]uint64{
			11: 1_000, 14: 900, 15: 100, 16: 200,
		}),
	}

	fees, err := Recover(segment, layout, version.MustLookup("0.3.5"))
	require.NoError(t, err)
	assert.Equal(t, "700", fees.ManagementFee.String())
	assert.Zero(t, fees.TotalFee().Cmp(big.NewInt(1_000)))
}

func TestDumpNamedSlots(t *testing.T) {
	layout := mustTable()["0.4.0"]
	exit := step(layout.ExitPC, opJump, 1)
	exit.Memory = words(14, map[int]uint64{11: 9, 13: 60})
	segment := model.Trace{
		step(layout.EntryPC, opJumpDest, 1),
		step(7, "PUSH1", 1),
		exit,
	}

	snaps := Dump(segment, layout)
	require.Len(t, snaps, 2)
	assert.Equal(t, layout.ExitPC, snaps[1].PC)
	assert.Equal(t, "9", snaps[1].Values["gain"].String())
	assert.Equal(t, "60", snaps[1].Values["duration"].String())
	assert.Nil(t, snaps[1].Values["total_fee"])
	assert.Nil(t, snaps[0].Values["gain"])
}
