package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"escolas-wikidata/census"
	"escolas-wikidata/metrics"
	"escolas-wikidata/models"
	"escolas-wikidata/services"
	"escolas-wikidata/storage"
	"escolas-wikidata/utils"
	"escolas-wikidata/wikidata"
)

func importCmd(a *app) *cobra.Command {
	var (
		dryRun bool
		limit  int
		start  int
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Run the full import over a census file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.SourcePath = args[0]
			}
			if cmd.Flags().Changed("dry-run") {
				a.cfg.DryRun = dryRun
			}
			if cmd.Flags().Changed("limit") {
				a.cfg.RowLimit = limit
			}
			if cmd.Flags().Changed("start") {
				a.cfg.StartLine = start
			}
			return a.runImport(cmd)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log planned edits instead of writing; overrides DRY_RUN")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many rows; overrides ROW_LIMIT")
	cmd.Flags().IntVar(&start, "start", 0, "Skip rows before this file line; overrides START_LINE")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, logger := a.cfg, a.logger

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	logger.Info("=== Censo Escolar import starting (run %s) ===", runID)
	logger.Info("Config: source %s (%s) | census year %d | dry-run %v | edit interval %dms | retries %d",
		cfg.SourcePath, cfg.SourceEncoding, cfg.CensusYear, cfg.DryRun, cfg.EditIntervalMs, cfg.MaxRetries)

	reader, err := census.Open(cfg.SourcePath, cfg.SourceEncoding)
	if err != nil {
		return err
	}
	defer reader.Close()

	m := metrics.New()
	retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}

	queries, err := wikidata.NewQueryService(cfg.SPARQLEndpoint, cfg.INEPProperty, cfg.RequestTimeout(), retry, logger, m)
	if err != nil {
		return err
	}

	var writer services.EntityWriter
	var dryRunWriter *wikidata.DryRunWriter
	if cfg.DryRun {
		dryRunWriter = wikidata.NewDryRunWriter(logger)
		writer = dryRunWriter
	} else {
		client, err := wikidata.NewClient(wikidata.ClientOptions{
			Endpoint:     cfg.APIEndpoint,
			UserAgent:    cfg.UserAgent,
			Timeout:      cfg.RequestTimeout(),
			EditInterval: cfg.EditInterval(),
			MaxLag:       cfg.MaxLag,
		}, retry, logger, m)
		if err != nil {
			return err
		}
		if err := client.Login(ctx, cfg.BotUsername, cfg.BotPassword); err != nil {
			return err
		}
		writer = client
	}

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		return err
	}
	defer csvWriter.Close()

	var ledger storage.RunLedger
	if cfg.LedgerEnabled {
		pl, err := storage.NewPostgresLedger(cfg.DSN())
		if err != nil {
			logger.Error("Make sure PostgreSQL is running: docker compose up -d")
			return err
		}
		defer pl.Close()
		ledger = pl
		logger.Info("Recording results in PostgreSQL (table: school_imports)")
	}

	deps := services.ImporterDeps{
		Cleaner:  services.NewCleaner(logger),
		Builder:  services.NewItemBuilder(cfg),
		Checker:  queries,
		Resolver: queries,
		Writer:   writer,
		Sinks:    []services.ResultWriter{csvWriter},
		Metrics:  m,
		Logger:   logger,
	}
	if ledger != nil {
		deps.Ledger = ledger
	}

	importer := services.NewImporter(services.ImportOptions{
		RunID:        runID,
		SkipInactive: cfg.SkipInactive,
		RowLimit:     cfg.RowLimit,
		StartLine:    cfg.StartLine,
		DryRun:       cfg.DryRun,
	}, deps)

	results, runErr := importer.Run(ctx, reader)
	if ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		logger.Warn("Interrupted, %d rows were processed before stopping", len(results))
		runErr = nil
	}

	if ledger != nil {
		stored, err := ledger.FetchRun(context.WithoutCancel(ctx), runID)
		switch {
		case err != nil:
			logger.Error("Failed to fetch run from the ledger for the summary: %v", err)
		case len(stored) > 0:
			results = stored
		}
	}

	reportSvc := services.NewReportService(logger)
	reportSvc.Print(reportSvc.Generate(results))

	if dryRunWriter != nil {
		items, statements := dryRunWriter.Counts()
		logger.Info("Dry run: %d items and %d statements would have been written", items, statements)
	}

	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("%v", err)
		} else {
			logger.Info("Metrics written to %s", cfg.MetricsTextfile)
		}
	}

	fmt.Printf("  Done. Results → %s\n\n", cfg.CSVOutputPath)
	return runErr
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <inep-code>",
		Short: "Look up the Wikidata item carrying an INEP code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: a.logger}
			queries, err := wikidata.NewQueryService(cfg.SPARQLEndpoint, cfg.INEPProperty, cfg.RequestTimeout(), retry, a.logger, metrics.New())
			if err != nil {
				return err
			}

			qid, found, err := queries.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not on Wikidata\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s%s\n", args[0], wikidata.EntityPrefix, qid)
			return nil
		},
	}
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <name...>",
		Short: "Print a school name the way it would be labelled",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), services.NormalizeName(strings.Join(args, " ")))
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <location> <differentiated>",
		Short: "Print the category for TP_LOCALIZACAO and TP_LOCALIZACAO_DIFERENCIADA",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			category, ok := services.Classify(args[0], args[1])
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "no category (generic %s)\n", models.ItemRef(wikidata.ItemSchool))
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), category)
		},
	}
}
