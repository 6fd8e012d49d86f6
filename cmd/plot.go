package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/kilianp07/evcharge/pkg/export"
)

var (
	plotFlags  sessionFlags
	plotFormat string
	plotWidth  float64
	plotHeight float64
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render SOC and power of one charge session as PNG or HTML",
	RunE:  runPlot,
}

func init() {
	plotFlags.register(plotCmd, "session.png")
	plotCmd.Flags().StringVarP(&plotFormat, "format", "f", "png", "output format: png or html")
	plotCmd.Flags().Float64Var(&plotWidth, "width", 8, "image width in inches")
	plotCmd.Flags().Float64Var(&plotHeight, "height", 6, "image height in inches")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	if plotFormat != "png" && plotFormat != "html" {
		return fmt.Errorf("unsupported format %q", plotFormat)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps, _, err := plotFlags.trace(ctx, cmd, "plot")
	if err != nil {
		return err
	}
	w, err := openOutput(cmd, plotFlags.output)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s on %s", plotFlags.ev, plotFlags.evse)
	if plotFormat == "html" {
		err = export.WriteHTML(w, title, steps)
	} else {
		err = export.WritePNG(w, title, steps, vg.Length(plotWidth)*vg.Inch, vg.Length(plotHeight)*vg.Inch)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
