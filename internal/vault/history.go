package vault

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

// BuildHistories folds fee events into an as-of history per vault.
// A migrated strategy inherits the fee of the strategy it replaces.
func BuildHistories(events []model.FeeEvent) map[common.Address]*model.FeeHistory {
	sorted := append([]model.FeeEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position().Less(sorted[j].Position())
	})

	out := make(map[common.Address]*model.FeeHistory)
	for _, ev := range sorted {
		h, ok := out[ev.Vault]
		if !ok {
			h = &model.FeeHistory{StrategistFee: make(map[common.Address]model.Timeline)}
			out[ev.Vault] = h
		}
		pos := ev.Position()

		switch ev.Kind {
		case model.FeeEventManagementFee:
			h.ManagementFee.Set(pos, ev.Value)
		case model.FeeEventPerformanceFee:
			h.PerformanceFee.Set(pos, ev.Value)
		case model.FeeEventStrategyAdded, model.FeeEventStrategyFee:
			tl := h.StrategistFee[ev.Strategy]
			tl.Set(pos, ev.Value)
			h.StrategistFee[ev.Strategy] = tl
		case model.FeeEventStrategyMigrated:
			inherited, ok := h.StrategistFee[ev.OldStrategy].At(pos)
			if !ok {
				continue
			}
			tl := h.StrategistFee[ev.Strategy]
			tl.Set(pos, inherited)
			h.StrategistFee[ev.Strategy] = tl
		}
	}
	return out
}

// FeeState reads fee settings from the chain.
type FeeState interface {
	ManagementFee(ctx context.Context, vault common.Address, block uint64) (uint64, error)
	PerformanceFee(ctx context.Context, vault common.Address, block uint64) (uint64, error)
	StrategyParams(ctx context.Context, layout version.StrategyParamsLayout, vault, strategy common.Address, block uint64) (model.StrategyParams, error)
}

// VariantSource resolves the release of a vault.
type VariantSource interface {
	Variant(ctx context.Context, vault common.Address) (version.Variant, error)
}

// FeeConfigs resolves the fee configuration effective at a report position.
// Values missing from the history fall back to state read before the report block.
type FeeConfigs struct {
	histories map[common.Address]*model.FeeHistory
	state     FeeState
	variants  VariantSource
}

// NewFeeConfigs builds a resolver over fee events.
func NewFeeConfigs(events []model.FeeEvent, state FeeState, variants VariantSource) *FeeConfigs {
	return &FeeConfigs{
		histories: BuildHistories(events),
		state:     state,
		variants:  variants,
	}
}

// FeeConfigAt returns the fee configuration in effect when report was emitted.
func (f *FeeConfigs) FeeConfigAt(ctx context.Context, report model.ReportEvent) (model.FeeConfiguration, error) {
	// the report itself must see fee changes logged earlier in its own block
	pos := report.Position()
	pre := report.BlockNumber - 1

	var conf model.FeeConfiguration
	var mgmtOK, perfOK, stratOK bool
	if h, ok := f.histories[report.Vault]; ok {
		conf.ManagementFee, mgmtOK = h.ManagementFee.At(pos)
		conf.PerformanceFee, perfOK = h.PerformanceFee.At(pos)
		conf.StrategistFee, stratOK = h.StrategistFee[report.Strategy].At(pos)
	}

	var err error
	if !mgmtOK {
		if f.state == nil {
			return conf, fmt.Errorf("no management fee history for %s", report.Vault.Hex())
		}
		if conf.ManagementFee, err = f.state.ManagementFee(ctx, report.Vault, pre); err != nil {
			return conf, fmt.Errorf("management fee: %w", err)
		}
	}
	if !perfOK {
		if f.state == nil {
			return conf, fmt.Errorf("no performance fee history for %s", report.Vault.Hex())
		}
		if conf.PerformanceFee, err = f.state.PerformanceFee(ctx, report.Vault, pre); err != nil {
			return conf, fmt.Errorf("performance fee: %w", err)
		}
	}
	if !stratOK {
		if f.state == nil || f.variants == nil {
			return conf, fmt.Errorf("no strategist fee history for %s", report.Strategy.Hex())
		}
		v, err := f.variants.Variant(ctx, report.Vault)
		if err != nil {
			return conf, err
		}
		params, err := f.state.StrategyParams(ctx, v.StrategyParams, report.Vault, report.Strategy, pre)
		if err != nil {
			return conf, fmt.Errorf("strategist fee: %w", err)
		}
		if conf.StrategistFee, err = bps(params.PerformanceFee); err != nil {
			return conf, fmt.Errorf("strategist fee: %w", err)
		}
	}
	return conf, nil
}

// History returns the fee history of a vault.
func (f *FeeConfigs) History(vault common.Address) (*model.FeeHistory, bool) {
	h, ok := f.histories[vault]
	return h, ok
}
