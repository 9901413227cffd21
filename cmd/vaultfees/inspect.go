package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultFees/internal/cache"
	"vaultFees/internal/catalog"
	"vaultFees/internal/chain"
	"vaultFees/internal/config"
	"vaultFees/internal/model"
	"vaultFees/internal/trace"
	"vaultFees/internal/vault"
	"vaultFees/internal/version"
)

// inspection is one transaction cut into per-report segments.
type inspection struct {
	node     *node
	catalog  *catalog.Catalog
	versions *vault.Versions
	reports  []model.ReportEvent
	variants []version.Variant
	layouts  []*trace.Layout
	segments []model.Trace
	logger   *zap.Logger
}

func (in *inspection) Close() {
	in.node.Close()
	_ = in.logger.Sync()
}

func inspectTx(ctx context.Context, cmd *cobra.Command, arg string) (*inspection, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	hashes, err := config.ParseTxHashes([]string{arg})
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, fmt.Errorf("transaction hash is required")
	}
	tx := hashes[0]

	layouts, err := loadLayouts(cfg.Layouts)
	if err != nil {
		return nil, err
	}
	n, err := dialNode(ctx, cfg.Common)
	if err != nil {
		return nil, err
	}
	in := &inspection{node: n, logger: logger}

	if in.catalog, err = txCatalog(ctx, cfg.Catalog, n.client, tx); err != nil {
		in.Close()
		return nil, err
	}
	in.reports = in.catalog.ForTx(tx)
	if len(in.reports) == 0 {
		in.Close()
		return nil, fmt.Errorf("no vault reports in %s", tx.Hex())
	}

	if in.versions, err = newVersions(cfg.Common, n.reader); err != nil {
		in.Close()
		return nil, err
	}
	for _, r := range in.reports {
		v, err := in.versions.Variant(ctx, r.Vault)
		if err != nil {
			in.Close()
			return nil, err
		}
		layout, err := layouts.Layout(v)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.variants = append(in.variants, v)
		in.layouts = append(in.layouts, layout)
	}

	traces, err := cache.Open(cfg.CacheDir, 4)
	if err != nil {
		in.Close()
		return nil, err
	}
	defer traces.Close()
	raw, err := traces.Blob(ctx, cache.Key("trace", tx.Hex()), func(ctx context.Context) ([]byte, error) {
		return n.client.TraceTransaction(ctx, tx)
	})
	if err != nil {
		in.Close()
		return nil, err
	}
	steps, err := chain.DecodeStructLogs(raw)
	if err != nil {
		in.Close()
		return nil, err
	}
	if in.segments, err = trace.Split(steps, in.layouts); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

// txCatalog returns an in-memory catalog holding the synced records plus the
// reports of tx, read from its receipt when the catalog does not know them.
func txCatalog(ctx context.Context, dir string, client *chain.Client, tx common.Hash) (*catalog.Catalog, error) {
	disk, err := openCatalog(dir)
	if err != nil {
		return nil, err
	}
	mem := catalog.New()
	if _, err := mem.Add(disk.Reports(), disk.FeeEvents()); err != nil {
		return nil, err
	}
	if len(mem.ForTx(tx)) > 0 {
		return mem, nil
	}

	logs, err := client.TransactionLogs(ctx, tx)
	if err != nil {
		return nil, err
	}
	var reports []model.ReportEvent
	for _, log := range logs {
		if !vault.IsReport(log) {
			continue
		}
		r, err := vault.DecodeReport(log)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if _, err := mem.Add(reports, nil); err != nil {
		return nil, err
	}
	return mem, nil
}
