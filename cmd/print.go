package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ans-archiver/internal/logging"
	"ans-archiver/internal/printer"
)

// newPrintCmd creates the 'print' subcommand, which renders previously
// archived HTML artifacts to PDF with headless Chrome.
func newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Renders archived HTML artifacts to PDF",
		Long: `Walks the archive base path and prints every attempt and grading-panel
HTML file to a sibling PDF using a headless Chrome instance. Requires a
Chrome or Chromium binary on the host.`,
		RunE: runPrintCommand,
	}
}

func runPrintCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := printer.New(printer.Config{NavigationTimeout: cfg.NavTimeout()}, logging.L)
	defer p.Close()

	if err := p.Run(ctx, cfg.Archive.BasePath); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("print run: %w", err)
	}

	logging.L.Info("Print command finished.")
	return nil
}
