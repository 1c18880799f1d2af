package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"escolas-wikidata/config"
	"escolas-wikidata/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *utils.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "escolas-wikidata",
		Short: "Import Brazilian school census records into Wikidata",
		Long: `escolas-wikidata reads the INEP Censo Escolar microdata, checks which
schools already have a Wikidata item, and creates fully referenced items
for the ones that do not.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cfg = config.Load()
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}
			a.logger = utils.NewLoggerWithLevel(a.cfg.LogLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(
		importCmd(a),
		checkCmd(a),
		normalizeCmd(),
		classifyCmd(),
	)
	return cmd
}
