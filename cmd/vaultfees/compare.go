package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vaultFees/internal/fees"
	"vaultFees/internal/trace"
	"vaultFees/internal/vault"
)

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := inspectTx(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	configs := vault.NewFeeConfigs(in.catalog.FeeEvents(), in.node.reader, in.versions)
	engine := fees.NewEngine(in.node.reader, in.catalog, configs, in.logger)
	out := cmd.OutOrStdout()

	for i, r := range in.reports {
		v := in.variants[i]
		fmt.Fprintf(out, "%s %s strategy %s (%s)\n", r.TxHash.Hex(), r.Position(), r.Strategy.Hex(), v)

		calc, err := engine.Assess(ctx, r, v)
		if err != nil {
			return fmt.Errorf("assess %s: %w", r.Position(), err)
		}
		observed, err := trace.Recover(in.segments[i], in.layouts[i], v)
		if err != nil {
			fmt.Fprintf(out, "trace not verifiable: %v\n\n", err)
			continue
		}
		decimals, err := in.node.reader.Decimals(ctx, r.Vault)
		if err != nil {
			return err
		}

		cmp := fees.Compare(calc, observed)
		fmt.Fprintln(out, cmp.Table("state", "trace", decimals))
		switch {
		case !cmp.Equal():
			fmt.Fprintln(out, "MISMATCH")
		case cmp.Partial():
			fmt.Fprintln(out, "match, duration not verified")
		default:
			fmt.Fprintln(out, "match")
		}
		fmt.Fprintln(out)
	}
	return nil
}
