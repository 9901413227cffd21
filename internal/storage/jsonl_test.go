package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultFees/internal/model"
)

func TestJsonlAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "positions.jsonl")
	s := NewJsonl[model.LogPosition](path)

	records, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, s.Append([]model.LogPosition{{BlockNumber: 1, LogIndex: 2}}))
	require.NoError(t, s.Append([]model.LogPosition{{BlockNumber: 3, LogIndex: 0}, {BlockNumber: 3, LogIndex: 1}}))
	require.NoError(t, s.Append(nil))

	records, err = s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []model.LogPosition{{BlockNumber: 1, LogIndex: 2}, {BlockNumber: 3, LogIndex: 0}, {BlockNumber: 3, LogIndex: 1}}, records)
}

func TestJsonlMismatches(t *testing.T) {
	sink := NewJsonlMismatches(filepath.Join(t.TempDir(), "mismatches.jsonl"))
	m := model.Mismatch{
		TxHash:      "0xabc",
		BlockNumber: 10,
		LogIndex:    2,
		Version:     "0.4.0",
		Fields:      []model.FieldDiff{{Name: "management_fee", Left: "1", Right: "2"}},
	}
	require.NoError(t, sink.PutMismatch(m))

	got, err := sink.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, m, got[0])
}
