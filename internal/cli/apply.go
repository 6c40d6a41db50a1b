package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/tourneyq/internal/batch"
	"github.com/roach88/tourneyq/internal/batchfile"
	"github.com/roach88/tourneyq/internal/metrics"
	"github.com/roach88/tourneyq/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	AutoCommit      bool
	PageSize        int
	MaxRetries      int
	MetricsTextfile string
}

// ApplyResult is the outcome of one apply run.
type ApplyResult struct {
	File       string          `json:"file"`
	Operations int             `json:"operations"`
	Retries    int             `json:"retries"`
	Stats      batch.Snapshot  `json:"stats"`
	Failed     []FailedOpEntry `json:"failed"`
}

// FailedOpEntry is one operation left in the error queue.
type FailedOpEntry struct {
	Seq       int64  `json:"seq"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// String renders the result for text output.
func (r ApplyResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Applied %s: %d operation(s)\n", r.File, r.Operations)
	fmt.Fprintf(&b, "  pages:      %d\n", r.Stats.PagesProcessed)
	fmt.Fprintf(&b, "  succeeded:  %d\n", r.Stats.OperationsSuccessful)
	fmt.Fprintf(&b, "  failed:     %d\n", r.Stats.OperationsFailed)
	fmt.Fprintf(&b, "  success:    %.1f%%\n", r.Stats.SuccessRate)
	fmt.Fprintf(&b, "  retries:    %d\n", r.Retries)
	fmt.Fprintf(&b, "  avg page:   %.3fs\n", r.Stats.AvgPageTime)
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "\n%d operation(s) still failing:\n", len(r.Failed))
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "  %s\n    %s\n", f.Operation, f.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <batch-file>",
		Short: "Apply a batch file through the write queue",
		Long: `Apply the operations in a YAML batch file to the tournament database.

By default the whole file runs as one batch: operations are buffered and
flushed in pages once the file has been queued. With --auto-commit, a page
is flushed as soon as it fills.

Failed operations are retried up to --max-retries times, since an
operation can fail only because of the order it ran in within its page
(for example a delete of a player a later update un-references).

Exit codes:
  0 - All operations applied
  1 - Operations still failing after retries, or invalid batch file
  2 - Command error (unreadable file, database open failure, etc.)

Examples:
  tourneyq apply --db ./weekly.db results.yaml
  tourneyq apply --config tourneyq.yaml --auto-commit --page-size 500 import.yaml
  tourneyq apply --metrics-textfile /var/lib/node_exporter/tourneyq.prom results.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AutoCommit, "auto-commit", false, "flush each page as soon as it fills (overrides config)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "operations per page (overrides config)")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", -1, "retry passes over failed operations (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write queue metrics in Prometheus text format (overrides config)")

	return cmd
}

func runApply(ctx context.Context, opts *ApplyOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("auto-commit") {
		cfg.Queue.AutoCommit = opts.AutoCommit
	}
	if opts.PageSize > 0 {
		cfg.Queue.PageSize = opts.PageSize
	}
	if opts.MaxRetries >= 0 {
		cfg.Queue.MaxRetries = opts.MaxRetries
	}
	if opts.MetricsTextfile != "" {
		cfg.Metrics.Textfile = opts.MetricsTextfile
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	reg := store.NewRegistry()
	specs, err := parseBatchFile(path, reg)
	if err != nil {
		return reportParseError(formatter, err)
	}
	formatter.VerboseLog("Parsed %d operation(s) from %s", len(specs), path)

	logger.Info("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	queueOpts := []batch.Option{
		batch.WithRegistry(reg),
		batch.WithLogger(logger),
		batch.WithNow(opts.clock()),
	}

	var q *batch.Queue
	if cfg.Queue.AutoCommit {
		def := batch.NewDefault(func() *batch.Queue {
			return batch.New(st, append(queueOpts, batch.WithPageSize(cfg.Queue.PageSize), batch.WithAutoCommit(true))...)
		})
		q = def.Queue()
		err = batchfile.Apply(ctx, q, specs)
		if err == nil {
			def.Close(ctx)
		}
	} else {
		err = batch.WithBatch(ctx, st, cfg.Queue.PageSize, func(bq *batch.Queue) error {
			q = bq
			return batchfile.Apply(ctx, bq, specs)
		}, queueOpts...)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to queue operations", err)
	}

	retries := 0
	for retries < cfg.Queue.MaxRetries && len(q.Errors()) > 0 {
		retries++
		formatter.VerboseLog("Retry pass %d: %d failed operation(s)", retries, len(q.Errors()))
		q.RetryErrors(ctx)
	}

	if cfg.Metrics.Textfile != "" {
		labels := prometheus.Labels{"batch": filepath.Base(path)}
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, q, labels); err != nil {
			_ = formatter.Error(ErrCodeMetricsExport, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		logger.Info("metrics written", "path", cfg.Metrics.Textfile)
	}

	result := ApplyResult{
		File:       filepath.Base(path),
		Operations: len(specs),
		Retries:    retries,
		Stats:      q.Stats(),
		Failed:     []FailedOpEntry{},
	}
	for _, f := range q.Errors() {
		result.Failed = append(result.Failed, FailedOpEntry{
			Seq:       f.Operation.Seq,
			Operation: f.Operation.String(),
			Message:   f.Message,
		})
	}

	if len(result.Failed) > 0 {
		msg := fmt.Sprintf("%d operation(s) failed", len(result.Failed))
		if err := formatter.Failure(ErrCodeOpsFailed, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(result)
}

// parseBatchFile opens and parses path. Validation problems come back as
// batchfile.ValidationErrors; anything else is a command error.
func parseBatchFile(path string, reg *batch.Registry) ([]batchfile.Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return batchfile.Parse(f, reg)
}

// reportParseError prints a parse failure and maps it to an exit code.
func reportParseError(formatter *OutputFormatter, err error) error {
	var verrs batchfile.ValidationErrors
	if errors.As(err, &verrs) {
		return outputValidationErrors(formatter, verrs)
	}
	if errors.Is(err, os.ErrNotExist) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "batch file not found", err)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to read batch file", err)
}
