package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tourneyq/internal/store"
)

// DumpResult holds the rows of one table.
type DumpResult struct {
	Entity  string      `json:"entity"`
	Columns []string    `json:"columns"`
	Rows    []store.Row `json:"rows"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <entity>",
		Short: "List the rows of a table",
		Long: `List every row of player, tournament or match, ordered by id.

Examples:
  tourneyq dump --db ./weekly.db player
  tourneyq dump --db ./weekly.db match --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context(), rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDump(ctx context.Context, opts *RootOptions, entity string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	table, ok := store.TableFor(entity)
	if !ok {
		var known []string
		for _, t := range store.Tables() {
			known = append(known, t.Entity())
		}
		msg := fmt.Sprintf("unknown entity %q (known: %s)", entity, strings.Join(known, ", "))
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	// dump only reads; don't create an empty database as a side effect.
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", cfg.Database.Path), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	st, err := store.OpenReadOnly(cfg.Database.Path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rows, err := st.List(ctx, table)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list rows", err)
	}

	result := DumpResult{Entity: entity, Columns: table.Columns(), Rows: rows}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputDumpText(cmd, result)
}

func outputDumpText(cmd *cobra.Command, result DumpResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(result.Columns, "\t")))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			if v := row[col]; v != nil {
				cells[i] = fmt.Sprint(v)
			} else {
				cells[i] = "-"
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "(%d row(s))\n", len(result.Rows))
	return nil
}
