package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultFees/internal/model"
)

// Runs against a live database when VAULTFEES_TEST_PG_DSN is set.
func TestInsertReportsIsIdempotent(t *testing.T) {
	dsn := os.Getenv("VAULTFEES_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("VAULTFEES_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	block := uint64(time.Now().UnixNano())
	row := model.ReportRow{
		BlockNumber:    block,
		LogIndex:       1,
		TxHash:         "0xabc",
		Timestamp:      time.Unix(1_600_000_000, 0).UTC(),
		Vault:          "0xvault",
		Strategy:       "0xstrategy",
		Version:        "0.3.5",
		Gain:           decimal.RequireFromString("1.5"),
		ManagementFee:  decimal.RequireFromString("0.01"),
		PerformanceFee: decimal.RequireFromString("0.2"),
		StrategistFee:  decimal.RequireFromString("0.1"),
		Duration:       604800,
	}

	n, err := store.InsertReports(ctx, []model.ReportRow{row})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.InsertReports(ctx, []model.ReportRow{row})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ok, err := store.ReportExists(ctx, row.Position())
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := store.ReportKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, row.Position())
}
