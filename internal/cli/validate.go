package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tourneyq/internal/batchfile"
	"github.com/roach88/tourneyq/internal/store"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                        `json:"valid"`
	Operations int                         `json:"operations"`
	Errors     []batchfile.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <batch-file>",
		Short: "Check a batch file without touching the database",
		Long: `Parse a batch file and resolve every entity and handler name.

Reports all problems with their line numbers. No database is opened,
so rows that do not exist yet are not detected here.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	specs, err := parseBatchFile(path, store.NewRegistry())
	if err != nil {
		return reportParseError(formatter, err)
	}

	for _, s := range specs {
		formatter.VerboseLog("%s", s)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Operations: len(specs)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d operation(s) valid\n", len(specs))
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, errs batchfile.ValidationErrors) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
