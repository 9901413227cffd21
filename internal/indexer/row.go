package indexer

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

// buildRow assembles the persisted row of a report both engines agree on.
// The duration comes from the state computation and is marked verified only
// when the trace produced it too.
func buildRow(r model.ReportEvent, v version.Variant, conf model.FeeConfiguration, calc, observed model.Fees, decimals uint8, timestamp uint64) model.ReportRow {
	row := model.ReportRow{
		BlockNumber:       r.BlockNumber,
		LogIndex:          r.LogIndex,
		TxHash:            r.TxHash.Hex(),
		Timestamp:         time.Unix(int64(timestamp), 0).UTC(),
		Vault:             r.Vault.Hex(),
		Strategy:          r.Strategy.Hex(),
		Version:           v.Name,
		Gain:              scaled(r.Gain, decimals),
		Loss:              scaled(r.Loss, decimals),
		TotalGain:         scaled(r.TotalGain, decimals),
		TotalLoss:         scaled(r.TotalLoss, decimals),
		TotalDebt:         scaled(r.TotalDebt, decimals),
		DebtAdded:         scaled(r.DebtAdded, decimals),
		ManagementFeeBPS:  conf.ManagementFee,
		PerformanceFeeBPS: conf.PerformanceFee,
		StrategistFeeBPS:  conf.StrategistFee,
		ManagementFee:     scaled(calc.ManagementFee, decimals),
		PerformanceFee:    scaled(calc.PerformanceFee, decimals),
		StrategistFee:     scaled(calc.StrategistFee, decimals),
		DurationVerified:  calc.Duration != nil && observed.Duration != nil,
	}
	if r.DebtPaid != nil {
		paid := scaled(r.DebtPaid, decimals)
		row.DebtPaid = &paid
	}
	if r.DebtRatio != nil && r.DebtRatio.IsInt64() {
		row.DebtRatio = r.DebtRatio.Int64()
	}
	if calc.Duration != nil {
		row.Duration = *calc.Duration
	}
	return row
}

func scaled(v *big.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}
