package model

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// LogPosition orders logs across the chain by block number and log index.
type LogPosition struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
}

// Less reports whether p precedes other.
func (p LogPosition) Less(other LogPosition) bool {
	if p.BlockNumber != other.BlockNumber {
		return p.BlockNumber < other.BlockNumber
	}
	return p.LogIndex < other.LogIndex
}

func (p LogPosition) String() string {
	return fmt.Sprintf("%d:%d", p.BlockNumber, p.LogIndex)
}

// ReportEvent is a decoded StrategyReported log.
type ReportEvent struct {
	BlockNumber uint64         `json:"block_number"`
	LogIndex    uint64         `json:"log_index"`
	TxHash      common.Hash    `json:"tx_hash"`
	Vault       common.Address `json:"vault"`
	Strategy    common.Address `json:"strategy"`
	Gain        *big.Int       `json:"gain"`
	Loss        *big.Int       `json:"loss"`
	DebtPaid    *big.Int       `json:"debt_paid,omitempty"`
	TotalGain   *big.Int       `json:"total_gain"`
	TotalLoss   *big.Int       `json:"total_loss"`
	TotalDebt   *big.Int       `json:"total_debt"`
	DebtAdded   *big.Int       `json:"debt_added"`
	DebtRatio   *big.Int       `json:"debt_ratio"`
}

// Position returns the canonical ordering key of the report.
func (r ReportEvent) Position() LogPosition {
	return LogPosition{BlockNumber: r.BlockNumber, LogIndex: r.LogIndex}
}

// SortReports orders reports by (block_number, log_index) in place.
func SortReports(reports []ReportEvent) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Position().Less(reports[j].Position())
	})
}

// StrategyParams holds the fields of vault.strategies(strategy) used for fee assessment.
type StrategyParams struct {
	PerformanceFee *big.Int
	LastReport     *big.Int
	TotalDebt      *big.Int
}
