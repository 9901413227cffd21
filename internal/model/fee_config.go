package model

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// FeeConfiguration is the fee schedule in basis points effective at a log position.
type FeeConfiguration struct {
	ManagementFee  uint64 `json:"management_fee"`
	PerformanceFee uint64 `json:"performance_fee"`
	StrategistFee  uint64 `json:"strategist_fee"`
}

func (c FeeConfiguration) String() string {
	return fmt.Sprintf("management_fee=%.2f%% performance_fee=%.2f%% strategist_fee=%.2f%%",
		float64(c.ManagementFee)/100, float64(c.PerformanceFee)/100, float64(c.StrategistFee)/100)
}

// TimelineEntry is a single value update at a log position.
type TimelineEntry struct {
	Position LogPosition `json:"position"`
	Value    uint64      `json:"value"`
}

// Timeline is an as-of history of a value, sorted by position.
type Timeline []TimelineEntry

// Set records value at pos, replacing an existing entry at the same position.
func (t *Timeline) Set(pos LogPosition, value uint64) {
	entries := *t
	i := sort.Search(len(entries), func(i int) bool { return !entries[i].Position.Less(pos) })
	if i < len(entries) && entries[i].Position == pos {
		entries[i].Value = value
		return
	}
	entries = append(entries, TimelineEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = TimelineEntry{Position: pos, Value: value}
	*t = entries
}

// At returns the latest value recorded at or before pos.
func (t Timeline) At(pos LogPosition) (uint64, bool) {
	i := sort.Search(len(t), func(i int) bool { return pos.Less(t[i].Position) })
	if i == 0 {
		return 0, false
	}
	return t[i-1].Value, true
}

// FeeHistory holds every fee update observed for a vault.
type FeeHistory struct {
	ManagementFee  Timeline                    `json:"management_fee"`
	PerformanceFee Timeline                    `json:"performance_fee"`
	StrategistFee  map[common.Address]Timeline `json:"strategist_fee"`
}
