package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultfees",
		Short:        "Verify vault harvest fees against execution traces",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan vault reports and fee changes into the catalog",
		RunE:  runSync,
	}
	commonFlags(syncCmd.Flags())
	syncCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	syncCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	syncCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	syncCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	syncCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.AddCommand(syncCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Reconcile and persist every cataloged report not yet loaded",
		RunE:  runIndex,
	}
	commonFlags(indexCmd.Flags())
	indexCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	indexCmd.Flags().Int("workers", 4, "concurrent transactions")
	indexCmd.Flags().String("cache-dir", "./data/cache", "trace cache directory, empty keeps traces in memory")
	indexCmd.Flags().Int("cache-size", 256, "in-memory trace cache entries")
	indexCmd.Flags().Int("max-retries", 3, "retries per transaction on transient errors")
	indexCmd.Flags().Duration("retry-backoff", time.Second, "initial retry backoff")
	indexCmd.Flags().StringSlice("deny-txs", nil, "transaction hashes never processed")
	indexCmd.Flags().String("mismatches", "./data/mismatches.jsonl", "mismatch report JSONL path")
	indexCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	root.AddCommand(indexCmd)

	compareCmd := &cobra.Command{
		Use:   "compare <tx>",
		Short: "Print the fee comparison of every report in a transaction",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompare,
	}
	commonFlags(compareCmd.Flags())
	compareCmd.Flags().String("cache-dir", "./data/cache", "trace cache directory")
	root.AddCommand(compareCmd)

	layoutCmd := &cobra.Command{
		Use:   "layout <tx>",
		Short: "Print the named memory slots of each fee assessment in a transaction",
		Args:  cobra.ExactArgs(1),
		RunE:  runLayout,
	}
	commonFlags(layoutCmd.Flags())
	layoutCmd.Flags().String("cache-dir", "./data/cache", "trace cache directory")
	root.AddCommand(layoutCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func commonFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "archive node RPC URL with debug_traceTransaction")
	flags.Float64("rpc-rate", 0, "maximum RPC requests per second, 0 disables the limit")
	flags.StringSlice("vaults", nil, "vault addresses (comma-separated)")
	flags.StringToString("vault-versions", nil, "vault=release pairs that skip the apiVersion() lookup")
	flags.String("catalog", "./data/catalog", "report catalog directory")
	flags.String("layouts", "", "trace layout YAML overriding the built-in tables")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
