package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vaultFees/internal/trace"
)

func runLayout(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := inspectTx(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	out := cmd.OutOrStdout()
	for i, r := range in.reports {
		layout := in.layouts[i]
		fmt.Fprintf(out, "%s %s strategy %s (%s)\n", r.TxHash.Hex(), r.Position(), r.Strategy.Hex(), in.variants[i])

		names := layout.Names()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprint(w, "pc\top")
		for _, name := range names {
			fmt.Fprintf(w, "\t%s", name)
		}
		fmt.Fprintln(w)
		for _, snap := range trace.Dump(in.segments[i], layout) {
			fmt.Fprintf(w, "%d\t%s", snap.PC, snap.Op)
			for _, name := range names {
				if v := snap.Values[name]; v != nil {
					fmt.Fprintf(w, "\t%s", v)
				} else {
					fmt.Fprint(w, "\t-")
				}
			}
			fmt.Fprintln(w)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}
