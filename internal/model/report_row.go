package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportRow is the persisted representation of a reconciled report.
// Token amounts are scaled by the vault decimals.
type ReportRow struct {
	BlockNumber       uint64
	LogIndex          uint64
	TxHash            string
	Timestamp         time.Time
	Vault             string
	Strategy          string
	Version           string
	Gain              decimal.Decimal
	Loss              decimal.Decimal
	DebtPaid          *decimal.Decimal
	TotalGain         decimal.Decimal
	TotalLoss         decimal.Decimal
	TotalDebt         decimal.Decimal
	DebtAdded         decimal.Decimal
	DebtRatio         int64
	ManagementFeeBPS  uint64
	PerformanceFeeBPS uint64
	StrategistFeeBPS  uint64
	ManagementFee     decimal.Decimal
	PerformanceFee    decimal.Decimal
	StrategistFee     decimal.Decimal
	Duration          uint64
	DurationVerified  bool
}

// Position returns the primary key of the row.
func (r ReportRow) Position() LogPosition {
	return LogPosition{BlockNumber: r.BlockNumber, LogIndex: r.LogIndex}
}
