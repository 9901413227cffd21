package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultFees/internal/cache"
	"vaultFees/internal/config"
	"vaultFees/internal/indexer"
	"vaultFees/internal/metrics"
	"vaultFees/internal/storage"
	"vaultFees/internal/storage/postgres"
)

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	deny, err := config.ParseTxHashes(cfg.DenyTxs)
	if err != nil {
		return err
	}
	layouts, err := loadLayouts(cfg.Layouts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := openCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	err = store.EnsureSchema(ctx)
	store.Close()
	if err != nil {
		return err
	}

	// version lookups are shared by every worker
	versionNode, err := dialNode(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer versionNode.Close()
	versions, err := newVersions(cfg.Common, versionNode.reader)
	if err != nil {
		return err
	}

	traces, err := cache.Open(cfg.CacheDir, cfg.CacheSize)
	if err != nil {
		return err
	}
	defer traces.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	sessions := func(ctx context.Context) (*indexer.Session, error) {
		n, err := dialNode(ctx, cfg.Common)
		if err != nil {
			return nil, err
		}
		db, err := postgres.Connect(ctx, cfg.PGDSN)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &indexer.Session{
			Chain: n.client,
			State: n.reader,
			Store: db,
			Close: func() {
				db.Close()
				n.Close()
			},
		}, nil
	}

	pipeline, err := indexer.New(indexer.Config{
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		DenyTxs:      deny,
	}, indexer.Deps{
		Catalog:    cat,
		Versions:   versions,
		Layouts:    layouts,
		Cache:      traces,
		Sessions:   sessions,
		Mismatches: storage.NewJsonlMismatches(cfg.Mismatches),
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("index start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("workers", cfg.Workers),
		zap.Int("reports", len(cat.Reports())),
		zap.Int("deny_txs", len(deny)),
		zap.String("cache_dir", cfg.CacheDir),
	)

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded=%d skipped=%d dropped=%d denied=%d failed=%d\n",
		summary.Loaded, summary.Skipped, summary.Dropped, summary.Denied, summary.Failed)
	return nil
}
