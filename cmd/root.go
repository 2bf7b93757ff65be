// Package cmd defines and implements the CLI commands for the ans-archiver
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ans-archiver/internal/config"
	"ans-archiver/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
)

// newRootCmd creates and configures the root command. Configuration is
// loaded and the logger initialized before any subcommand runs.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ans-archiver",
		Short: "Archives graded submissions from the ANS assessment platform",
		Long: `ans-archiver walks every course visible to the configured session token,
downloads each graded submission together with its grading panels and
uploaded PDFs, and reassembles them into standalone HTML and annotated
PDF artifacts.`,
		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg = loaded
			if err := logging.InitLogger(cfg.Logging.Development); err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (settings also read from ANS_* environment variables)")

	cmd.AddCommand(newArchiveCmd())
	cmd.AddCommand(newPrintCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
