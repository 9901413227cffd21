package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"vaultFees/internal/cache"
	"vaultFees/internal/catalog"
	"vaultFees/internal/model"
	"vaultFees/internal/trace"
	"vaultFees/internal/vault"
	"vaultFees/internal/version"
)

var (
	testVault = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	strategy1 = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	strategy2 = common.HexToAddress("0x00000000000000000000000000000000000000b2")

	txPair     = common.HexToHash("0x01")
	txZeroGain = common.HexToHash("0x02")
)

type atBlock struct {
	strategy common.Address
	block    uint64
}

type fakeState struct {
	params map[atBlock]model.StrategyParams
}

func (f *fakeState) StrategyParams(_ context.Context, _ version.StrategyParamsLayout, _, strategy common.Address, block uint64) (model.StrategyParams, error) {
	p, ok := f.params[atBlock{strategy, block}]
	if !ok {
		return model.StrategyParams{}, fmt.Errorf("strategy %s at %d: %w", strategy.Hex(), block, model.ErrHeightUnavailable)
	}
	return p, nil
}

func (f *fakeState) VaultLastReport(context.Context, common.Address, uint64) (*big.Int, error) {
	return nil, fmt.Errorf("vault last report not served")
}

func (f *fakeState) VaultTotalAssets(context.Context, common.Address, uint64) (*big.Int, error) {
	return nil, fmt.Errorf("vault total assets not served")
}

func (f *fakeState) VaultTotalDebt(context.Context, common.Address, uint64) (*big.Int, error) {
	return nil, fmt.Errorf("vault total debt not served")
}

func (f *fakeState) VaultDelegatedAssets(context.Context, common.Address, uint64) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeState) StrategyDelegatedAssets(context.Context, common.Address, uint64) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeState) Decimals(context.Context, common.Address) (uint8, error) {
	return 6, nil
}

func (f *fakeState) ManagementFee(context.Context, common.Address, uint64) (uint64, error) {
	return 0, fmt.Errorf("management fee must come from history")
}

func (f *fakeState) PerformanceFee(context.Context, common.Address, uint64) (uint64, error) {
	return 0, fmt.Errorf("performance fee must come from history")
}

type fakeChain struct {
	mu       sync.Mutex
	traces   map[common.Hash]json.RawMessage
	failures map[common.Hash]int
	calls    map[common.Hash]int
}

func (c *fakeChain) TraceTransaction(_ context.Context, tx common.Hash) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[tx]++
	if c.failures[tx] > 0 {
		c.failures[tx]--
		return nil, fmt.Errorf("trace %s: node timeout", tx.Hex())
	}
	raw, ok := c.traces[tx]
	if !ok {
		return nil, fmt.Errorf("unknown tx %s", tx.Hex())
	}
	return raw, nil
}

func (c *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_600_000_000 + number*12, nil
}

type memStore struct {
	mu   sync.Mutex
	rows map[model.LogPosition]model.ReportRow
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[model.LogPosition]model.ReportRow)}
}

func (s *memStore) ReportKeys(context.Context) (map[model.LogPosition]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.LogPosition]struct{}, len(s.rows))
	for pos := range s.rows {
		out[pos] = struct{}{}
	}
	return out, nil
}

func (s *memStore) ReportExists(_ context.Context, pos model.LogPosition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[pos]
	return ok, nil
}

func (s *memStore) InsertReports(_ context.Context, rows []model.ReportRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, r := range rows {
		if _, ok := s.rows[r.Position()]; ok {
			continue
		}
		s.rows[r.Position()] = r
		inserted++
	}
	return inserted, nil
}

type memMismatches struct {
	mu  sync.Mutex
	out []model.Mismatch
}

func (m *memMismatches) PutMismatch(mm model.Mismatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, mm)
	return nil
}

type structLog struct {
	PC     uint64   `json:"pc"`
	Op     string   `json:"op"`
	Depth  int      `json:"depth"`
	Stack  []string `json:"stack"`
	Memory []string `json:"memory"`
}

func memory(set map[int]uint64) []string {
	out := make([]string, 18)
	for i := range out {
		out[i] = fmt.Sprintf("%064x", set[i])
	}
	return out
}

// assessment emits the steps of one fee assessment: entry, some body, and
// an exit JUMP carrying the memory slots of the 0.4.x layout.
func assessment(layout *trace.Layout, exitPC uint64, slots map[int]uint64) []structLog {
	return []structLog{
		{PC: 1, Op: "PUSH1", Depth: 1},
		{PC: layout.EntryPC, Op: "JUMPDEST", Depth: 1},
		{PC: layout.EntryPC + 1, Op: "PUSH2", Depth: 1},
		{PC: exitPC, Op: "JUMP", Depth: 2},
		{PC: exitPC, Op: "JUMP", Depth: 1, Memory: memory(slots)},
	}
}

func encodeTrace(t *testing.T, parts ...[]structLog) json.RawMessage {
	t.Helper()
	var logs []structLog
	for _, p := range parts {
		logs = append(logs, p...)
	}
	raw, err := json.Marshal(map[string]interface{}{"failed": false, "structLogs": logs})
	require.NoError(t, err)
	return raw
}

type fixture struct {
	catalog    *catalog.Catalog
	state      *fakeState
	chain      *fakeChain
	store      *memStore
	mismatches *memMismatches
	layout     *trace.Layout
	sessions   int
}

// newFixture catalogs two 0.4.0 reports in one transaction and a zero gain
// report in another, with state and traces that agree.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := trace.DefaultTable()
	require.NoError(t, err)
	layout := table["0.4.0"]

	cat := catalog.New()
	_, err = cat.Add([]model.ReportEvent{
		report(txPair, 100, 2, strategy1, 1_000_000),
		report(txPair, 100, 5, strategy2, 400_000),
		report(txZeroGain, 200, 0, strategy1, 0),
	}, []model.FeeEvent{
		{Kind: model.FeeEventStrategyAdded, BlockNumber: 40, LogIndex: 0, Vault: testVault, Strategy: strategy1, Value: 1000},
		{Kind: model.FeeEventStrategyAdded, BlockNumber: 40, LogIndex: 1, Vault: testVault, Strategy: strategy2, Value: 500},
		{Kind: model.FeeEventManagementFee, BlockNumber: 50, LogIndex: 0, Vault: testVault, Value: 200},
		{Kind: model.FeeEventPerformanceFee, BlockNumber: 50, LogIndex: 1, Vault: testVault, Value: 2000},
	})
	require.NoError(t, err)

	state := &fakeState{params: map[atBlock]model.StrategyParams{
		{strategy1, 99}:  params(1_000, 50_000_000),
		{strategy1, 100}: params(605_800, 50_000_000),
		{strategy2, 99}:  params(10_000, 20_000_000),
		{strategy2, 100}: params(96_400, 20_000_000),
	}}

	chain := &fakeChain{
		traces: map[common.Hash]json.RawMessage{
			txPair: encodeTrace(t,
				assessment(layout, layout.ExitPC, map[int]uint64{11: 1_000_000, 13: 604_800, 14: 19_165, 15: 100_000, 16: 200_000}),
				assessment(layout, layout.ExitPC, map[int]uint64{11: 400_000, 13: 86_400, 14: 1_095, 15: 20_000, 16: 80_000}),
			),
			txZeroGain: encodeTrace(t, assessment(layout, layout.EarlyExitPC, map[int]uint64{11: 0})),
		},
		failures: map[common.Hash]int{},
		calls:    map[common.Hash]int{},
	}

	return &fixture{
		catalog:    cat,
		state:      state,
		chain:      chain,
		store:      newMemStore(),
		mismatches: &memMismatches{},
		layout:     layout,
	}
}

func report(tx common.Hash, block, idx uint64, strategy common.Address, gain int64) model.ReportEvent {
	return model.ReportEvent{
		BlockNumber: block,
		LogIndex:    idx,
		TxHash:      tx,
		Vault:       testVault,
		Strategy:    strategy,
		Gain:        big.NewInt(gain),
		Loss:        new(big.Int),
		DebtPaid:    new(big.Int),
		TotalGain:   big.NewInt(gain),
		TotalLoss:   new(big.Int),
		TotalDebt:   big.NewInt(50_000_000),
		DebtAdded:   new(big.Int),
		DebtRatio:   big.NewInt(5_000),
	}
}

func params(lastReport, totalDebt int64) model.StrategyParams {
	return model.StrategyParams{
		PerformanceFee: big.NewInt(0),
		LastReport:     big.NewInt(lastReport),
		TotalDebt:      big.NewInt(totalDebt),
	}
}

func (f *fixture) pipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	versions, err := vault.NewVersions(map[common.Address]string{testVault: "0.4.0"}, nil)
	require.NoError(t, err)
	c, err := cache.Open("", 16)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	p, err := New(cfg, Deps{
		Catalog:  f.catalog,
		Versions: versions,
		Cache:    c,
		Sessions: func(context.Context) (*Session, error) {
			f.sessions++
			return &Session{Chain: f.chain, State: f.state, Store: f.store}, nil
		},
		Mismatches: f.mismatches,
	})
	require.NoError(t, err)
	return p
}
