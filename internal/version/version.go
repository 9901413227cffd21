// Package version describes the vault releases this module can verify.
//
// Every release is a Variant that carries the constants and rule choices the
// fee formula, the trace layout and the duration logic depend on. Variants are
// resolved once per vault and passed explicitly to the engines.
package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"vaultFees/internal/model"
)

// AssetsBasis selects what the management fee is charged on.
type AssetsBasis int

const (
	// BasisVaultTotalAssets charges on vault.totalAssets.
	BasisVaultTotalAssets AssetsBasis = iota
	// BasisVaultTotalDebt charges on vault.totalDebt.
	BasisVaultTotalDebt
	// BasisVaultDebtLessDelegated charges on vault.totalDebt - vault.delegatedAssets.
	BasisVaultDebtLessDelegated
	// BasisStrategyDebtLessDelegated charges on strategy totalDebt - strategy.delegatedAssets.
	BasisStrategyDebtLessDelegated
)

func (b AssetsBasis) String() string {
	switch b {
	case BasisVaultTotalAssets:
		return "vault_total_assets"
	case BasisVaultTotalDebt:
		return "vault_total_debt"
	case BasisVaultDebtLessDelegated:
		return "vault_debt_less_delegated"
	case BasisStrategyDebtLessDelegated:
		return "strategy_debt_less_delegated"
	default:
		return "unknown"
	}
}

// DurationScope selects how the fee period is measured.
type DurationScope int

const (
	// DurationVaultFirstInBlock uses vault.lastReport, zero after the first report of the vault in a block.
	DurationVaultFirstInBlock DurationScope = iota
	// DurationStrategyFirstInBlock uses strategy lastReport, zero after the first report of the strategy in a block.
	DurationStrategyFirstInBlock
	// DurationStrategy uses strategy lastReport unconditionally.
	DurationStrategy
)

const (
	secsPerJulianYear    = 31_557_600
	secsPerGregorianYear = 31_556_952
)

// StrategyParamsLayout is the word index of fields in the vault.strategies() tuple.
type StrategyParamsLayout struct {
	PerformanceFee int
	LastReport     int
	TotalDebt      int
	Words          int
}

// Variant is a supported vault release.
type Variant struct {
	Name           string
	SecsPerYear    uint64
	Basis          AssetsBasis
	Duration       DurationScope
	Precision      bool
	Clamp          bool
	SkipZeroGain   bool
	StrategyParams StrategyParamsLayout
	semver         *semver.Version
}

// String returns the release name, e.g. "0.4.3".
func (v Variant) String() string {
	return v.Name
}

// AtLeast compares the variant against a release floor.
func (v Variant) AtLeast(floor string) bool {
	return !v.semver.LessThan(semver.MustParse(floor))
}

var known = []string{
	"0.3.0", "0.3.1", "0.3.2", "0.3.3", "0.3.4", "0.3.5",
	"0.4.0", "0.4.1", "0.4.2", "0.4.3",
}

var variants = buildVariants()

func buildVariants() map[string]Variant {
	out := make(map[string]Variant, len(known))
	for _, name := range known {
		out[name] = newVariant(semver.MustParse(name))
	}
	return out
}

func newVariant(sv *semver.Version) Variant {
	atLeast := func(floor string) bool {
		return !sv.LessThan(semver.MustParse(floor))
	}

	v := Variant{
		Name:        sv.String(),
		SecsPerYear: secsPerJulianYear,
		semver:      sv,
	}

	if atLeast("0.3.3") {
		v.SecsPerYear = secsPerGregorianYear
	}

	switch {
	case atLeast("0.3.5"):
		v.Basis = BasisStrategyDebtLessDelegated
	case atLeast("0.3.4"):
		v.Basis = BasisVaultDebtLessDelegated
	case atLeast("0.3.1"):
		v.Basis = BasisVaultTotalDebt
	default:
		v.Basis = BasisVaultTotalAssets
	}

	switch {
	case atLeast("0.4.0"):
		v.Duration = DurationStrategy
	case atLeast("0.3.5"):
		v.Duration = DurationStrategyFirstInBlock
	default:
		v.Duration = DurationVaultFirstInBlock
	}

	v.Precision = sv.Equal(semver.MustParse("0.3.5"))
	v.Clamp = atLeast("0.3.5")
	v.SkipZeroGain = atLeast("0.4.0")

	if atLeast("0.3.2") {
		// performanceFee, activation, debtRatio, minDebtPerHarvest, maxDebtPerHarvest,
		// lastReport, totalDebt, totalGain, totalLoss
		v.StrategyParams = StrategyParamsLayout{PerformanceFee: 0, LastReport: 5, TotalDebt: 6, Words: 9}
	} else {
		// performanceFee, activation, debtRatio, rateLimit, lastReport, totalDebt, totalGain, totalLoss
		v.StrategyParams = StrategyParamsLayout{PerformanceFee: 0, LastReport: 4, TotalDebt: 5, Words: 8}
	}

	return v
}

// Lookup resolves an api version string reported by a vault.
func Lookup(name string) (Variant, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "v")
	if v, ok := variants[name]; ok {
		return v, nil
	}
	return Variant{}, fmt.Errorf("%w: %q", model.ErrUnsupportedVersion, name)
}

// MustLookup is Lookup for tests and static tables.
func MustLookup(name string) Variant {
	v, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Known returns the supported release names in ascending order.
func Known() []string {
	out := append([]string(nil), known...)
	sort.Slice(out, func(i, j int) bool {
		return semver.MustParse(out[i]).LessThan(semver.MustParse(out[j]))
	})
	return out
}
