// Package trace splits transaction traces into per-report segments and recovers
// the fee quantities the vault computed from stack and memory snapshots.
package trace

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"vaultFees/internal/model"
	"vaultFees/internal/version"
)

//go:embed layouts.yaml
var defaultLayouts []byte

// Quantity names a value read from a trace.
type Quantity string

const (
	QuantityGain                Quantity = "gain"
	QuantityDuration            Quantity = "duration"
	QuantityManagementFee       Quantity = "management_fee"
	QuantityPerformanceFee      Quantity = "performance_fee"
	QuantityStrategistFee       Quantity = "strategist_fee"
	QuantityGovernanceFeeBefore Quantity = "governance_fee_before"
	QuantityGovernanceFeeAfter  Quantity = "governance_fee_after"
)

// Location is where a quantity lives in a step.
type Location string

const (
	LocationStack  Location = "stack"
	LocationMemory Location = "memory"
)

// Recovery selects how fee components are derived from the reads.
type Recovery string

const (
	// RecoveryDirect reads every fee component from its own slot.
	RecoveryDirect Recovery = "direct"
	// RecoveryTwoPoint reads the combined governance fee before and after the
	// performance fee is added and takes the difference.
	RecoveryTwoPoint Recovery = "two-point"
)

var requiredReads = map[Recovery][]Quantity{
	RecoveryDirect:   {QuantityGain, QuantityManagementFee, QuantityPerformanceFee, QuantityStrategistFee},
	RecoveryTwoPoint: {QuantityGain, QuantityGovernanceFeeBefore, QuantityGovernanceFeeAfter, QuantityStrategistFee},
}

// Read locates one quantity at a program counter.
type Read struct {
	Quantity Quantity `yaml:"quantity"`
	PC       uint64   `yaml:"pc"`
	Loc      Location `yaml:"loc"`
	Slot     int      `yaml:"slot"`
}

// Layout is the trace layout of the fee assessment of one release.
type Layout struct {
	Version         string         `yaml:"-"`
	EntryPC         uint64         `yaml:"entry_pc"`
	ExitPC          uint64         `yaml:"exit_pc"`
	EarlyExitPC     uint64         `yaml:"early_exit_pc"`
	SnapshotPC      uint64         `yaml:"snapshot_pc"`
	Recovery        Recovery       `yaml:"recovery"`
	Reads           []Read         `yaml:"reads"`
	EarlyExit       []Read         `yaml:"early_exit"`
	Memory          map[string]int `yaml:"memory"`
	ProgramCounters []uint64       `yaml:"program_counters"`
}

// HasEarlyExit reports whether the release returns early on zero gain.
func (l *Layout) HasEarlyExit() bool {
	return l.EarlyExitPC != 0
}

// Table maps release names to layouts.
type Table map[string]*Layout

// DefaultTable returns the embedded layouts.
func DefaultTable() (Table, error) {
	return ParseTable(defaultLayouts)
}

// LoadTable reads layouts from path, or the embedded layouts when path is empty.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML layout table.
func ParseTable(data []byte) (Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode layouts: %w", err)
	}
	for name, layout := range table {
		if layout == nil {
			continue
		}
		layout.Version = name
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Layout returns the layout of a release.
func (t Table) Layout(v version.Variant) (*Layout, error) {
	layout, ok := t[v.Name]
	if !ok {
		return nil, fmt.Errorf("%w: no trace layout for %s", model.ErrUnsupportedVersion, v.Name)
	}
	return layout, nil
}

// Validate checks that every known release has a complete layout.
func (t Table) Validate() error {
	var err error
	for _, name := range version.Known() {
		layout, ok := t[name]
		if !ok || layout == nil {
			err = multierr.Append(err, fmt.Errorf("layout %s: missing", name))
			continue
		}
		err = multierr.Append(err, layout.validate())
	}
	return err
}

func (l *Layout) validate() error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf("layout %s: "+format, append([]interface{}{l.Version}, args...)...))
	}

	if l.EntryPC == 0 {
		fail("entry_pc is required")
	}
	if l.ExitPC == 0 {
		fail("exit_pc is required")
	}
	if l.SnapshotPC == 0 {
		fail("snapshot_pc is required")
	}

	required, ok := requiredReads[l.Recovery]
	if !ok {
		fail("unknown recovery %q", l.Recovery)
	}

	seen := make(map[Quantity]bool, len(l.Reads))
	snapshot := false
	for _, r := range l.Reads {
		if e := r.validate(); e != nil {
			fail("%v", e)
		}
		seen[r.Quantity] = true
		if r.PC == l.SnapshotPC {
			snapshot = true
		}
	}
	for _, q := range required {
		if !seen[q] {
			fail("missing read for %s", q)
		}
	}
	if !snapshot {
		fail("no read at snapshot_pc %d", l.SnapshotPC)
	}

	if len(l.EarlyExit) > 0 && !l.HasEarlyExit() {
		fail("early_exit reads without early_exit_pc")
	}
	for _, r := range l.EarlyExit {
		if e := r.validate(); e != nil {
			fail("early exit: %v", e)
		}
		if r.PC != l.EarlyExitPC {
			fail("early exit read %s at pc %d, want %d", r.Quantity, r.PC, l.EarlyExitPC)
		}
	}
	return err
}

func (r Read) validate() error {
	if r.PC == 0 {
		return fmt.Errorf("read %s has no pc", r.Quantity)
	}
	if r.Slot < 0 {
		return fmt.Errorf("read %s has negative slot", r.Quantity)
	}
	switch r.Loc {
	case LocationStack, LocationMemory:
		return nil
	default:
		return fmt.Errorf("read %s has unknown location %q", r.Quantity, r.Loc)
	}
}

// Names returns the memory slot names of the layout ordered by slot.
func (l *Layout) Names() []string {
	names := make([]string, 0, len(l.Memory))
	for name := range l.Memory {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return l.Memory[names[i]] < l.Memory[names[j]]
	})
	return names
}
