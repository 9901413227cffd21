package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultFees/internal/catalog"
	"vaultFees/internal/config"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSync(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	vaults, err := config.ParseAddresses(cfg.Vaults)
	if err != nil {
		return err
	}
	if len(vaults) == 0 {
		return fmt.Errorf("vault list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := dialNode(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer n.Close()

	cat, err := openCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	syncer := catalog.NewSyncer(catalog.SyncConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Vaults:            vaults,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, n.client, cat, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("vaults", len(vaults)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("catalog", cfg.Catalog),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	stats, err := syncer.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("sync done",
		zap.Uint64("from", stats.From),
		zap.Uint64("to", stats.To),
		zap.Int("reports", stats.Reports),
		zap.Int("fee_events", stats.FeeEvents),
	)
	return nil
}
