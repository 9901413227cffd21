package model

import "github.com/ethereum/go-ethereum/common"

// FeeEventKind names a vault log that changes the fee configuration.
type FeeEventKind string

const (
	FeeEventManagementFee    FeeEventKind = "management_fee"
	FeeEventPerformanceFee   FeeEventKind = "performance_fee"
	FeeEventStrategyAdded    FeeEventKind = "strategy_added"
	FeeEventStrategyFee      FeeEventKind = "strategy_fee"
	FeeEventStrategyMigrated FeeEventKind = "strategy_migrated"
)

// FeeEvent is a fee configuration change observed in vault logs.
type FeeEvent struct {
	Kind        FeeEventKind   `json:"kind"`
	BlockNumber uint64         `json:"block_number"`
	LogIndex    uint64         `json:"log_index"`
	Vault       common.Address `json:"vault"`
	// Strategy is the affected strategy, the new one for migrations.
	Strategy    common.Address `json:"strategy"`
	OldStrategy common.Address `json:"old_strategy"`
	Value       uint64         `json:"value"`
}

// Position returns the log position of the event.
func (e FeeEvent) Position() LogPosition {
	return LogPosition{BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
}
