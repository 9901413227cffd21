// Package indexer reconciles cataloged vault reports and persists the ones
// whose fees agree between the state computation and the execution trace.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"vaultFees/internal/cache"
	"vaultFees/internal/catalog"
	"vaultFees/internal/fees"
	"vaultFees/internal/metrics"
	"vaultFees/internal/model"
	"vaultFees/internal/retry"
	"vaultFees/internal/storage"
	"vaultFees/internal/trace"
	"vaultFees/internal/vault"
)

// Config holds the pipeline settings.
type Config struct {
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// DenyTxs are never processed. Their traces are known to be broken on the node.
	DenyTxs []common.Hash
}

// Deps are the collaborators shared by every worker.
type Deps struct {
	Catalog    *catalog.Catalog
	Versions   vault.VariantSource
	Layouts    trace.Table
	Cache      *cache.Cache
	Sessions   SessionFactory
	Mismatches storage.MismatchSink
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Summary counts report and transaction outcomes.
type Summary struct {
	Loaded  int
	Skipped int
	Dropped int
	Denied  int
	Failed  int
}

func (s *Summary) add(o Summary) {
	s.Loaded += o.Loaded
	s.Skipped += o.Skipped
	s.Dropped += o.Dropped
	s.Denied += o.Denied
	s.Failed += o.Failed
}

// Pipeline runs the reconciliation over a bounded worker pool.
type Pipeline struct {
	cfg  Config
	deps Deps
	deny map[common.Hash]struct{}
	log  *zap.Logger
}

// worker is a session plus the engines bound to it.
type worker struct {
	sess    *Session
	configs *vault.FeeConfigs
	engine  *fees.Engine
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if deps.Versions == nil {
		return nil, fmt.Errorf("version source is nil")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session factory is nil")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache is nil")
	}
	if deps.Layouts == nil {
		table, err := trace.DefaultTable()
		if err != nil {
			return nil, err
		}
		deps.Layouts = table
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	deny := make(map[common.Hash]struct{}, len(cfg.DenyTxs))
	for _, tx := range cfg.DenyTxs {
		deny[tx] = struct{}{}
	}
	return &Pipeline{cfg: cfg, deps: deps, deny: deny, log: deps.Logger}, nil
}

func (p *Pipeline) newWorker(ctx context.Context) (*worker, error) {
	sess, err := p.deps.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	configs := vault.NewFeeConfigs(p.deps.Catalog.FeeEvents(), sess.State, p.deps.Versions)
	return &worker{
		sess:    sess,
		configs: configs,
		engine:  fees.NewEngine(sess.State, p.deps.Catalog, configs, p.log),
	}, nil
}

// Run processes every transaction with unpersisted reports.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	workers := make(chan *worker, p.cfg.Workers)
	defer func() {
		close(workers)
		for w := range workers {
			if w.sess.Close != nil {
				w.sess.Close()
			}
		}
	}()
	var first *worker
	for i := 0; i < p.cfg.Workers; i++ {
		w, err := p.newWorker(ctx)
		if err != nil {
			return summary, err
		}
		if first == nil {
			first = w
		}
		workers <- w
	}

	persisted, err := first.sess.Store.ReportKeys(ctx)
	if err != nil {
		return summary, fmt.Errorf("load persisted reports: %w", err)
	}
	txs := Worklist(p.deps.Catalog, persisted)
	p.log.Info("reconcile start",
		zap.Int("transactions", len(txs)),
		zap.Int("persisted", len(persisted)),
		zap.Int("workers", p.cfg.Workers),
	)

	var mu sync.Mutex
	pool := workerpool.New(p.cfg.Workers)
	for _, tx := range txs {
		tx := tx
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			w := <-workers
			defer func() { workers <- w }()

			res := p.processTx(ctx, w, tx, persisted)
			mu.Lock()
			summary.add(res)
			mu.Unlock()
		})
	}
	pool.StopWait()

	p.log.Info("reconcile done",
		zap.Int("loaded", summary.Loaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("dropped", summary.Dropped),
		zap.Int("denied", summary.Denied),
		zap.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}

// processTx reconciles one transaction, retrying the whole of it on transient errors.
func (p *Pipeline) processTx(ctx context.Context, w *worker, tx common.Hash, persisted map[model.LogPosition]struct{}) Summary {
	log := p.log.With(zap.String("tx", tx.Hex()))
	if _, ok := p.deny[tx]; ok {
		log.Info("transaction denied")
		p.deps.Metrics.Tx(metrics.TxDenied, 0)
		return Summary{Denied: 1}
	}

	start := time.Now()
	attempts := 0
	var out txOutcome
	err := retry.Do(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			p.deps.Metrics.Retry()
		}
		var err error
		out, err = p.reconcile(ctx, w, tx, persisted)
		if err != nil && model.IsRetryable(err) {
			log.Warn("reconcile failed", zap.Int("attempt", attempts), zap.Error(err))
		}
		return err
	})
	if err != nil {
		log.Error("transaction failed", zap.Int("attempts", attempts), zap.Error(err))
		p.deps.Metrics.Tx(metrics.TxFailed, time.Since(start))
		return Summary{Failed: 1}
	}

	for _, d := range out.drops {
		p.emitDrop(log, d)
	}

	p.deps.Metrics.Reports(metrics.Loaded, out.summary.Loaded)
	p.deps.Metrics.Reports(metrics.Skipped, out.summary.Skipped)
	p.deps.Metrics.Reports(metrics.Dropped, out.summary.Dropped)
	p.deps.Metrics.Tx(metrics.TxDone, time.Since(start))

	log.Info("transaction done",
		zap.Int("loaded", out.summary.Loaded),
		zap.Int("skipped", out.summary.Skipped),
		zap.Int("dropped", out.summary.Dropped),
	)
	return out.summary
}

func (p *Pipeline) emitDrop(log *zap.Logger, d drop) {
	m := d.mismatch
	fields := []zap.Field{
		zap.Uint64("block", m.BlockNumber),
		zap.Uint64("log_index", m.LogIndex),
		zap.String("vault", m.Vault),
		zap.String("strategy", m.Strategy),
		zap.String("version", m.Version),
	}
	if m.Reason != "" {
		log.Warn("report not verifiable", append(fields, zap.String("reason", m.Reason))...)
	} else {
		for _, f := range m.Fields {
			fields = append(fields, zap.Strings(f.Name, []string{f.Left, f.Right}))
		}
		log.Warn("fee mismatch", append(fields, zap.String("table", d.table))...)
	}

	if p.deps.Mismatches == nil {
		return
	}
	if err := p.deps.Mismatches.PutMismatch(m); err != nil {
		log.Error("record mismatch", zap.Error(err))
	}
}
