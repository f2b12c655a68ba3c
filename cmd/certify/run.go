package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jnst/certificate-issuance/internal/notify"
	"github.com/jnst/certificate-issuance/internal/repository"
	"github.com/jnst/certificate-issuance/internal/roster"
	"github.com/jnst/certificate-issuance/internal/service"
)

type runOptions struct {
	dryRun      bool
	outDir      string
	concurrency int
	timeout     time.Duration
	maxRecords  int
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <roster.xlsx|roster.csv>",
		Short: "Issue certificates for every row of a roster",
		Long: `Run decodes the roster, then normalizes, renders, records and emails a certificate
for each row. The run report is printed as JSON on stdout.

Example:
  certify run participants.xlsx --dry-run --out ./certificates`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "keep issuances in memory and log emails instead of sending them")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "write rendered certificates to this directory")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "records processed at once (default: BATCH_MAX_CONCURRENCY)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "stop dispatching records after this long (default: BATCH_RUN_TIMEOUT)")
	cmd.Flags().IntVar(&opts.maxRecords, "max-records", 0, "process at most this many rows (default: BATCH_MAX_RECORDS)")

	return cmd
}

func runBatch(cmd *cobra.Command, global *globalOptions, opts *runOptions, path string) error {
	cfg := global.cfg
	log := global.logger(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}

	rows, err := roster.Decode(path, data)
	if err != nil {
		return err
	}

	tmpl, err := global.template()
	if err != nil {
		return err
	}

	batch := cfg.Batch()
	if opts.concurrency > 0 {
		batch.MaxConcurrency = opts.concurrency
	}

	if opts.timeout > 0 {
		batch.RunTimeout = opts.timeout
	}

	if opts.maxRecords > 0 {
		batch.MaxRecords = opts.maxRecords
	}

	var (
		issuanceRepo repository.IssuanceRepository
		mailer       notify.Mailer
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.dryRun {
		issuanceRepo = repository.NewIssuanceRepositoryMemory()
		mailer = notify.NewLogMailer(log)
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		issuanceRepo = repository.NewIssuanceRepositoryImpl(pool)

		mailer, err = notify.NewMailer(cfg.Mail(), log)
		if err != nil {
			return err
		}
	}

	var batchOpts []service.BatchOption
	if opts.outDir != "" {
		sink, err := newDirSink(opts.outDir)
		if err != nil {
			return err
		}

		batchOpts = append(batchOpts, service.WithDocumentSink(sink))
	}

	report, err := service.NewBatchServiceImpl(issuanceRepo, mailer, log, batchOpts...).Run(ctx, rows, tmpl, batch)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(report)
}
