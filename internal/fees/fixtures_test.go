package fees

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

var (
	vaultA    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	strategyA = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	strategyB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type atBlock struct {
	addr  common.Address
	block uint64
}

// fakeState serves fixed state by address and height and counts reads.
type fakeState struct {
	lastReport       map[atBlock]int64
	strategyDebt     map[atBlock]int64
	vaultTotalAssets map[atBlock]int64
	vaultTotalDebt   map[atBlock]int64
	delegated        map[atBlock]int64
	decimals         uint8
	reads            int
}

func newFakeState() *fakeState {
	return &fakeState{
		lastReport:       map[atBlock]int64{},
		strategyDebt:     map[atBlock]int64{},
		vaultTotalAssets: map[atBlock]int64{},
		vaultTotalDebt:   map[atBlock]int64{},
		delegated:        map[atBlock]int64{},
		decimals:         18,
	}
}

func (f *fakeState) get(m map[atBlock]int64, addr common.Address, block uint64) (*big.Int, error) {
	f.reads++
	v, ok := m[atBlock{addr, block}]
	if !ok {
		return nil, fmt.Errorf("no state for %s at %d: %w", addr.Hex(), block, model.ErrHeightUnavailable)
	}
	return big.NewInt(v), nil
}

func (f *fakeState) StrategyParams(_ context.Context, _ version.StrategyParamsLayout, _, strategy common.Address, block uint64) (model.StrategyParams, error) {
	last, err := f.get(f.lastReport, strategy, block)
	if err != nil {
		return model.StrategyParams{}, err
	}
	debt, ok := f.strategyDebt[atBlock{strategy, block}]
	if !ok {
		debt = 0
	}
	return model.StrategyParams{PerformanceFee: new(big.Int), LastReport: last, TotalDebt: big.NewInt(debt)}, nil
}

func (f *fakeState) VaultLastReport(_ context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return f.get(f.lastReport, vault, block)
}

func (f *fakeState) VaultTotalAssets(_ context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return f.get(f.vaultTotalAssets, vault, block)
}

func (f *fakeState) VaultTotalDebt(_ context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return f.get(f.vaultTotalDebt, vault, block)
}

func (f *fakeState) VaultDelegatedAssets(_ context.Context, vault common.Address, block uint64) (*big.Int, error) {
	return f.get(f.delegated, vault, block)
}

func (f *fakeState) StrategyDelegatedAssets(_ context.Context, strategy common.Address, block uint64) (*big.Int, error) {
	return f.get(f.delegated, strategy, block)
}

func (f *fakeState) Decimals(context.Context, common.Address) (uint8, error) {
	f.reads++
	return f.decimals, nil
}

type fakeIndex []model.ReportEvent

func (idx fakeIndex) ReportsInBlock(block uint64) []model.ReportEvent {
	var out []model.ReportEvent
	for _, r := range idx {
		if r.BlockNumber == block {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position().Less(out[j].Position()) })
	return out
}

type fixedConfig struct {
	conf  model.FeeConfiguration
	calls int
}

func (c *fixedConfig) FeeConfigAt(context.Context, model.ReportEvent) (model.FeeConfiguration, error) {
	c.calls++
	return c.conf, nil
}

func reportAt(block, logIndex uint64, strategy common.Address, gain int64) model.ReportEvent {
	return model.ReportEvent{
		BlockNumber: block,
		LogIndex:    logIndex,
		Vault:       vaultA,
		Strategy:    strategy,
		Gain:        big.NewInt(gain),
		Loss:        new(big.Int),
	}
}
