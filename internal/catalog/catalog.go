// Package catalog keeps every known vault report and fee configuration event.
//
// The catalog is the backlog the reconciliation pipeline works through. It is
// filled by Syncer from chain logs and persisted as JSONL so later runs only
// scan new blocks.
package catalog

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"vaultFees/internal/model"
	"vaultFees/internal/storage"
)

const (
	reportsFile   = "reports.jsonl"
	feeEventsFile = "fee_events.jsonl"
)

// Catalog indexes reports by block and transaction. Safe for concurrent use.
type Catalog struct {
	reportsOut *storage.Jsonl[model.ReportEvent]
	feesOut    *storage.Jsonl[model.FeeEvent]

	mu        sync.RWMutex
	seen      map[model.LogPosition]struct{}
	reports   []model.ReportEvent
	feeEvents []model.FeeEvent
	byBlock   map[uint64][]model.ReportEvent
	byTx      map[common.Hash][]model.ReportEvent
}

// Open returns a catalog persisted under dir. Call Load to read existing records.
func Open(dir string) *Catalog {
	c := New()
	c.reportsOut = storage.NewJsonl[model.ReportEvent](filepath.Join(dir, reportsFile))
	c.feesOut = storage.NewJsonl[model.FeeEvent](filepath.Join(dir, feeEventsFile))
	return c
}

// New returns an in-memory catalog.
func New() *Catalog {
	return &Catalog{
		seen:    make(map[model.LogPosition]struct{}),
		byBlock: make(map[uint64][]model.ReportEvent),
		byTx:    make(map[common.Hash][]model.ReportEvent),
	}
}

// Load reads the persisted records.
func (c *Catalog) Load() error {
	if c.reportsOut == nil {
		return nil
	}
	reports, err := c.reportsOut.ReadAll()
	if err != nil {
		return err
	}
	events, err := c.feesOut.ReadAll()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index(reports, events)
	return nil
}

// Add records new reports and fee events, skipping positions already known,
// and persists them when the catalog is file backed.
func (c *Catalog) Add(reports []model.ReportEvent, events []model.FeeEvent) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	freshReports, freshEvents := c.index(reports, events)
	if c.reportsOut != nil {
		if err := c.reportsOut.Append(freshReports); err != nil {
			return 0, err
		}
		if err := c.feesOut.Append(freshEvents); err != nil {
			return 0, err
		}
	}
	return len(freshReports), nil
}

// index must be called with mu held.
func (c *Catalog) index(reports []model.ReportEvent, events []model.FeeEvent) ([]model.ReportEvent, []model.FeeEvent) {
	var freshReports []model.ReportEvent
	blocks := make(map[uint64]struct{})
	txs := make(map[common.Hash]struct{})
	for _, r := range reports {
		pos := r.Position()
		if _, ok := c.seen[pos]; ok {
			continue
		}
		c.seen[pos] = struct{}{}
		freshReports = append(freshReports, r)

		c.reports = append(c.reports, r)
		c.byBlock[r.BlockNumber] = append(c.byBlock[r.BlockNumber], r)
		c.byTx[r.TxHash] = append(c.byTx[r.TxHash], r)
		blocks[r.BlockNumber] = struct{}{}
		txs[r.TxHash] = struct{}{}
	}
	for block := range blocks {
		model.SortReports(c.byBlock[block])
	}
	for tx := range txs {
		model.SortReports(c.byTx[tx])
	}
	model.SortReports(c.reports)

	var freshEvents []model.FeeEvent
	for _, ev := range events {
		pos := ev.Position()
		if _, ok := c.seen[pos]; ok {
			continue
		}
		c.seen[pos] = struct{}{}
		freshEvents = append(freshEvents, ev)
		c.feeEvents = append(c.feeEvents, ev)
	}
	return freshReports, freshEvents
}

// Reports returns every report in log order.
func (c *Catalog) Reports() []model.ReportEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ReportEvent(nil), c.reports...)
}

// FeeEvents returns every fee configuration event.
func (c *Catalog) FeeEvents() []model.FeeEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.FeeEvent(nil), c.feeEvents...)
}

// ReportsInBlock returns the reports of a block in log order.
func (c *Catalog) ReportsInBlock(block uint64) []model.ReportEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ReportEvent(nil), c.byBlock[block]...)
}

// ForTx returns the reports of a transaction in log order.
func (c *Catalog) ForTx(tx common.Hash) []model.ReportEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ReportEvent(nil), c.byTx[tx]...)
}

// TxHashes returns every transaction with a report, ordered by its first report.
func (c *Catalog) TxHashes() []common.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]common.Hash, 0, len(c.byTx))
	for tx := range c.byTx {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		return c.byTx[out[i]][0].Position().Less(c.byTx[out[j]][0].Position())
	})
	return out
}
