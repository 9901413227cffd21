package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultFees/internal/model"
	"vaultFees/internal/retry"
	"vaultFees/internal/vault"
)

// SyncConfig holds the scan settings.
type SyncConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Vaults            []common.Address
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// LogSource serves vault logs.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// SyncStats summarizes a scan.
type SyncStats struct {
	From      uint64
	To        uint64
	Reports   int
	FeeEvents int
}

// Syncer scans vault logs into a Catalog in block batches.
type Syncer struct {
	cfg        SyncConfig
	chain      LogSource
	catalog    *Catalog
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewSyncer builds a Syncer with its dependencies.
func NewSyncer(cfg SyncConfig, chainClient LogSource, catalog *Catalog, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		cfg:        cfg,
		chain:      chainClient,
		catalog:    catalog,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run scans the configured range, resuming from the checkpoint when present.
func (s *Syncer) Run(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	if s.chain == nil {
		return stats, fmt.Errorf("chain client is nil")
	}
	if s.catalog == nil {
		return stats, fmt.Errorf("catalog is nil")
	}
	if s.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if len(s.cfg.Vaults) == 0 {
		return stats, fmt.Errorf("at least one vault is required")
	}

	reportTopics, err := vault.ReportTopics()
	if err != nil {
		return stats, err
	}
	feeTopics, err := vault.FeeTopics()
	if err != nil {
		return stats, err
	}
	topics := append(append([]common.Hash(nil), reportTopics...), feeTopics...)

	from := s.cfg.FromBlock
	to := s.cfg.ToBlock
	if to == 0 {
		latest, err := s.chain.LatestBlockNumber(ctx)
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := s.checkpoint.Load(s.cfg.Vaults)
	if err != nil {
		return stats, err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		s.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}
	stats.From, stats.To = from, to

	if from > to {
		s.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}

	ranges, err := SplitRange(from, to, s.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		s.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := s.filterLogsWithRetry(ctx, blockRange, topics)
		if err != nil {
			return stats, fmt.Errorf("filter logs: %w", err)
		}

		reports, events, err := decodeLogs(logs)
		if err != nil {
			return stats, err
		}
		added, err := s.catalog.Add(reports, events)
		if err != nil {
			return stats, fmt.Errorf("store catalog: %w", err)
		}
		stats.Reports += added
		stats.FeeEvents += len(events)

		if err := s.checkpoint.Save(blockRange.To, s.cfg.Vaults); err != nil {
			return stats, err
		}

		s.logger.Info("batch complete",
			zap.Int("reports", added),
			zap.Int("fee_events", len(events)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return stats, nil
}

func (s *Syncer) filterLogsWithRetry(ctx context.Context, r BlockRange, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := retry.Do(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, r.From, r.To, s.cfg.Vaults, topics)
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", r.From), zap.Uint64("to", r.To))
		}
		return err
	})
	return logs, err
}

func decodeLogs(logs []types.Log) ([]model.ReportEvent, []model.FeeEvent, error) {
	var reports []model.ReportEvent
	var events []model.FeeEvent
	for _, log := range logs {
		if log.Removed {
			continue
		}
		if vault.IsReport(log) {
			r, err := vault.DecodeReport(log)
			if err != nil {
				return nil, nil, err
			}
			reports = append(reports, r)
			continue
		}
		ev, err := vault.DecodeFeeEvent(log)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
	}
	return reports, events, nil
}
