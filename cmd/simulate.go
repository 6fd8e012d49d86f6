package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evcharge/pkg/export"
)

var (
	simFlags  sessionFlags
	simFormat string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate one charge session and write its battery states",
	RunE:  runSimulate,
}

func init() {
	simFlags.register(simulateCmd, "-")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "csv", "output format: csv or json")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simFormat != "csv" && simFormat != "json" {
		return fmt.Errorf("unsupported format %q", simFormat)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps, _, err := simFlags.trace(ctx, cmd, "simulate")
	if err != nil {
		return err
	}
	w, err := openOutput(cmd, simFlags.output)
	if err != nil {
		return err
	}
	if simFormat == "json" {
		err = export.WriteJSON(w, steps)
	} else {
		err = export.WriteCSV(w, steps)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
