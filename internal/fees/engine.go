// Package fees reimplements the vault fee assessment for every supported release
// and compares fee breakdowns produced by independent sources.
package fees

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

// MaxBPS is the basis point denominator used by every release.
const MaxBPS = 10_000

// StateReader reads vault and strategy state at a block height.
type StateReader interface {
	StrategyParams(ctx context.Context, layout version.StrategyParamsLayout, vault, strategy common.Address, block uint64) (model.StrategyParams, error)
	VaultLastReport(ctx context.Context, vault common.Address, block uint64) (*big.Int, error)
	VaultTotalAssets(ctx context.Context, vault common.Address, block uint64) (*big.Int, error)
	VaultTotalDebt(ctx context.Context, vault common.Address, block uint64) (*big.Int, error)
	VaultDelegatedAssets(ctx context.Context, vault common.Address, block uint64) (*big.Int, error)
	StrategyDelegatedAssets(ctx context.Context, strategy common.Address, block uint64) (*big.Int, error)
	Decimals(ctx context.Context, vault common.Address) (uint8, error)
}

// ReportIndex lists every known report of a block in log order.
type ReportIndex interface {
	ReportsInBlock(block uint64) []model.ReportEvent
}

// ConfigSource resolves the fee configuration effective at a report.
type ConfigSource interface {
	FeeConfigAt(ctx context.Context, report model.ReportEvent) (model.FeeConfiguration, error)
}

// Engine computes the fees a vault charged from chain state.
type Engine struct {
	state   StateReader
	reports ReportIndex
	config  ConfigSource
	logger  *zap.Logger
}

// NewEngine builds an Engine over its collaborators.
func NewEngine(state StateReader, reports ReportIndex, config ConfigSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{state: state, reports: reports, config: config, logger: logger}
}

// Assess reproduces the vault's fee assessment for a report.
func (e *Engine) Assess(ctx context.Context, report model.ReportEvent, v version.Variant) (model.Fees, error) {
	if report.Gain == nil {
		return model.Fees{}, fmt.Errorf("report %s has no gain", report.Position())
	}
	gain := new(big.Int).Set(report.Gain)

	if v.SkipZeroGain && gain.Sign() == 0 {
		fees := model.ZeroFees()
		fees.Gain = gain
		return fees, nil
	}

	duration, err := e.duration(ctx, report, v)
	if err != nil {
		return model.Fees{}, fmt.Errorf("duration: %w", err)
	}

	totalAssets, err := e.totalAssets(ctx, report, v)
	if err != nil {
		return model.Fees{}, fmt.Errorf("total assets: %w", err)
	}

	conf, err := e.config.FeeConfigAt(ctx, report)
	if err != nil {
		return model.Fees{}, fmt.Errorf("fee config: %w", err)
	}

	prec := big.NewInt(1)
	if v.Precision {
		decimals, err := e.state.Decimals(ctx, report.Vault)
		if err != nil {
			return model.Fees{}, fmt.Errorf("decimals: %w", err)
		}
		if decimals > 18 {
			return model.Fees{}, fmt.Errorf("decimals %d exceed 18", decimals)
		}
		prec.Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
	}

	fees := model.Fees{
		ManagementFee: floorChain(prec,
			[]*big.Int{totalAssets, new(big.Int).SetUint64(duration), new(big.Int).SetUint64(conf.ManagementFee)},
			[]*big.Int{big.NewInt(MaxBPS), new(big.Int).SetUint64(v.SecsPerYear)},
		),
		StrategistFee: floorChain(prec,
			[]*big.Int{gain, new(big.Int).SetUint64(conf.StrategistFee)},
			[]*big.Int{big.NewInt(MaxBPS)},
		),
		PerformanceFee: floorChain(prec,
			[]*big.Int{gain, new(big.Int).SetUint64(conf.PerformanceFee)},
			[]*big.Int{big.NewInt(MaxBPS)},
		),
		Gain:     gain,
		Duration: model.Uint64Ptr(duration),
	}

	if v.Clamp {
		fees.Clamp()
	}

	return fees, nil
}

// floorChain evaluates prec * factors... // divisors... // prec left to right
// with truncating division, matching the order the contract executes.
func floorChain(prec *big.Int, factors []*big.Int, divisors []*big.Int) *big.Int {
	out := new(big.Int).Set(prec)
	for _, f := range factors {
		out.Mul(out, f)
	}
	for _, d := range divisors {
		out.Quo(out, d)
	}
	return out.Quo(out, prec)
}

func (e *Engine) duration(ctx context.Context, report model.ReportEvent, v version.Variant) (uint64, error) {
	pre := report.BlockNumber - 1

	switch v.Duration {
	case version.DurationStrategy:
		return e.strategyDelta(ctx, report, v, pre)
	case version.DurationStrategyFirstInBlock:
		if !e.firstInBlock(report, func(other model.ReportEvent) bool { return other.Strategy == report.Strategy }) {
			return 0, nil
		}
		return e.strategyDelta(ctx, report, v, pre)
	default:
		if !e.firstInBlock(report, func(other model.ReportEvent) bool { return other.Vault == report.Vault }) {
			return 0, nil
		}
		before, err := e.state.VaultLastReport(ctx, report.Vault, pre)
		if err != nil {
			return 0, err
		}
		after, err := e.state.VaultLastReport(ctx, report.Vault, report.BlockNumber)
		if err != nil {
			return 0, err
		}
		return delta(before, after)
	}
}

func (e *Engine) strategyDelta(ctx context.Context, report model.ReportEvent, v version.Variant, pre uint64) (uint64, error) {
	before, err := e.state.StrategyParams(ctx, v.StrategyParams, report.Vault, report.Strategy, pre)
	if err != nil {
		return 0, err
	}
	after, err := e.state.StrategyParams(ctx, v.StrategyParams, report.Vault, report.Strategy, report.BlockNumber)
	if err != nil {
		return 0, err
	}
	return delta(before.LastReport, after.LastReport)
}

// firstInBlock reports whether no report in scope precedes report within its block.
func (e *Engine) firstInBlock(report model.ReportEvent, inScope func(model.ReportEvent) bool) bool {
	if e.reports == nil {
		return true
	}
	pos := report.Position()
	for _, other := range e.reports.ReportsInBlock(report.BlockNumber) {
		if inScope(other) && other.Position().Less(pos) {
			return false
		}
	}
	return true
}

func (e *Engine) totalAssets(ctx context.Context, report model.ReportEvent, v version.Variant) (*big.Int, error) {
	pre := report.BlockNumber - 1

	switch v.Basis {
	case version.BasisStrategyDebtLessDelegated:
		params, err := e.state.StrategyParams(ctx, v.StrategyParams, report.Vault, report.Strategy, pre)
		if err != nil {
			return nil, err
		}
		delegated, err := e.state.StrategyDelegatedAssets(ctx, report.Strategy, pre)
		if err != nil {
			return nil, err
		}
		e.warnDelegatedDrift(ctx, report, delegated, func(block uint64) (*big.Int, error) {
			return e.state.StrategyDelegatedAssets(ctx, report.Strategy, block)
		})
		return new(big.Int).Sub(params.TotalDebt, delegated), nil
	case version.BasisVaultDebtLessDelegated:
		debt, err := e.state.VaultTotalDebt(ctx, report.Vault, pre)
		if err != nil {
			return nil, err
		}
		delegated, err := e.state.VaultDelegatedAssets(ctx, report.Vault, pre)
		if err != nil {
			return nil, err
		}
		e.warnDelegatedDrift(ctx, report, delegated, func(block uint64) (*big.Int, error) {
			return e.state.VaultDelegatedAssets(ctx, report.Vault, block)
		})
		return new(big.Int).Sub(debt, delegated), nil
	case version.BasisVaultTotalDebt:
		return e.state.VaultTotalDebt(ctx, report.Vault, pre)
	case version.BasisVaultTotalAssets:
		return e.state.VaultTotalAssets(ctx, report.Vault, pre)
	default:
		return nil, fmt.Errorf("%w: %s has no assets basis", model.ErrUnsupportedVersion, v)
	}
}

// warnDelegatedDrift flags reports where delegated assets moved inside the harvest block,
// since the pre-report value may then not be what the contract used.
func (e *Engine) warnDelegatedDrift(ctx context.Context, report model.ReportEvent, pre *big.Int, read func(uint64) (*big.Int, error)) {
	if pre.Sign() == 0 {
		return
	}
	post, err := read(report.BlockNumber)
	if err != nil {
		e.logger.Debug("delegated assets read failed", zap.Error(err), zap.Stringer("position", report.Position()))
		return
	}
	if post.Cmp(pre) != 0 {
		e.logger.Warn("delegated assets changed in the harvest block, the data may be inaccurate",
			zap.String("vault", report.Vault.Hex()),
			zap.String("strategy", report.Strategy.Hex()),
			zap.Stringer("position", report.Position()),
			zap.String("pre", pre.String()),
			zap.String("post", post.String()),
		)
	}
}

func delta(before, after *big.Int) (uint64, error) {
	d := new(big.Int).Sub(after, before)
	if d.Sign() < 0 || !d.IsUint64() {
		return 0, fmt.Errorf("invalid last report delta %s", d)
	}
	return d.Uint64(), nil
}
