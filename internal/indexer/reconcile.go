package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultFees/internal/cache"
	"vaultFees/internal/chain"
	"vaultFees/internal/fees"
	"vaultFees/internal/model"
	"vaultFees/internal/trace"
	"vaultFees/internal/version"
)

const (
	stateEngine = "state"
	traceEngine = "trace"
)

type drop struct {
	mismatch model.Mismatch
	table    string
}

type txOutcome struct {
	summary Summary
	drops   []drop
}

// reconcile verifies every unpersisted report of tx and inserts the agreeing
// ones in a single batch. Nothing is persisted when it returns an error.
func (p *Pipeline) reconcile(ctx context.Context, w *worker, tx common.Hash, persisted map[model.LogPosition]struct{}) (txOutcome, error) {
	var out txOutcome
	reports := p.deps.Catalog.ForTx(tx)
	if len(reports) == 0 {
		return out, nil
	}

	pending := make([]bool, len(reports))
	anyPending := false
	for i, r := range reports {
		if _, ok := persisted[r.Position()]; ok {
			out.summary.Skipped++
			continue
		}
		exists, err := w.sess.Store.ReportExists(ctx, r.Position())
		if err != nil {
			return txOutcome{}, fmt.Errorf("report exists %s: %w", r.Position(), err)
		}
		if exists {
			out.summary.Skipped++
			continue
		}
		pending[i] = true
		anyPending = true
	}
	if !anyPending {
		return out, nil
	}

	variants := make([]version.Variant, len(reports))
	layouts := make([]*trace.Layout, len(reports))
	for i, r := range reports {
		v, err := p.deps.Versions.Variant(ctx, r.Vault)
		if err != nil {
			return txOutcome{}, err
		}
		layout, err := p.deps.Layouts.Layout(v)
		if err != nil {
			return txOutcome{}, err
		}
		variants[i], layouts[i] = v, layout
	}

	steps, err := p.steps(ctx, w, tx)
	if err != nil {
		return txOutcome{}, err
	}

	segments, err := trace.Split(steps, layouts)
	if err != nil {
		if !model.IsStructural(err) {
			return txOutcome{}, err
		}
		for i, r := range reports {
			if pending[i] {
				out.drop(unverifiable(r, variants[i], err))
			}
		}
		return out, nil
	}

	var rows []model.ReportRow
	for i, r := range reports {
		if !pending[i] {
			continue
		}
		v := variants[i]

		calc, err := w.engine.Assess(ctx, r, v)
		if err != nil {
			return txOutcome{}, fmt.Errorf("assess %s: %w", r.Position(), err)
		}
		observed, err := trace.Recover(segments[i], layouts[i], v)
		if err != nil {
			out.drop(unverifiable(r, v, err))
			continue
		}

		decimals, err := w.sess.State.Decimals(ctx, r.Vault)
		if err != nil {
			return txOutcome{}, fmt.Errorf("decimals: %w", err)
		}

		cmp := fees.Compare(calc, observed)
		if !cmp.Equal() {
			m := mismatchOf(r, v)
			m.Fields = cmp.Fields
			out.drop(drop{mismatch: m, table: cmp.Table(stateEngine, traceEngine, decimals)})
			continue
		}
		if cmp.Partial() {
			p.log.Debug("duration not verified", zap.String("tx", tx.Hex()), zap.Stringer("position", r.Position()))
		}

		conf, err := w.configs.FeeConfigAt(ctx, r)
		if err != nil {
			return txOutcome{}, fmt.Errorf("fee config %s: %w", r.Position(), err)
		}
		ts, err := w.sess.Chain.BlockTimestamp(ctx, r.BlockNumber)
		if err != nil {
			return txOutcome{}, fmt.Errorf("block timestamp: %w", err)
		}
		rows = append(rows, buildRow(r, v, conf, calc, observed, decimals, ts))
	}

	inserted, err := w.sess.Store.InsertReports(ctx, rows)
	if err != nil {
		return txOutcome{}, fmt.Errorf("insert reports: %w", err)
	}
	out.summary.Loaded += inserted
	out.summary.Skipped += len(rows) - inserted
	return out, nil
}

// steps returns the decoded trace of tx, fetching it through the cache.
func (p *Pipeline) steps(ctx context.Context, w *worker, tx common.Hash) (model.Trace, error) {
	raw, err := p.deps.Cache.Blob(ctx, cache.Key("trace", tx.Hex()), func(ctx context.Context) ([]byte, error) {
		return w.sess.Chain.TraceTransaction(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", tx.Hex(), err)
	}
	steps, err := chain.DecodeStructLogs(raw)
	if err != nil {
		return nil, &model.StructuralError{Op: "decode", Detail: err.Error()}
	}
	return steps, nil
}

func (o *txOutcome) drop(d drop) {
	o.summary.Dropped++
	o.drops = append(o.drops, d)
}

func mismatchOf(r model.ReportEvent, v version.Variant) model.Mismatch {
	return model.Mismatch{
		TxHash:      r.TxHash.Hex(),
		BlockNumber: r.BlockNumber,
		LogIndex:    r.LogIndex,
		Vault:       r.Vault.Hex(),
		Strategy:    r.Strategy.Hex(),
		Version:     v.Name,
		RecordedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func unverifiable(r model.ReportEvent, v version.Variant, err error) drop {
	m := mismatchOf(r, v)
	m.Reason = err.Error()
	var se *model.StructuralError
	if !errors.As(err, &se) {
		m.Reason = "recover: " + err.Error()
	}
	return drop{mismatch: m}
}
