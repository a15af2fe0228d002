package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cpurt/internal/compiler"
	"github.com/roach88/cpurt/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Module   string                     `json:"module"`
	Valid    bool                       `json:"valid"`
	Funcs    int                        `json:"funcs"`
	Ops      int                        `json:"ops"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <module.cue|module-dir>",
		Short: "Validate a module without lowering it",
		Long: `Compile a module description and run the structural checks the
lowering relies on: operands defined before use, known callees, matching
call signatures, one declaration per runtime target, well-formed custom
calls and argument mappings.

Recursive call groups are reported as warnings.`,
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
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := LoadModule(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	result := ValidationResult{
		Module:   m.Name,
		Funcs:    len(m.Funcs()),
		Errors:   compiler.ValidateModule(m),
		Warnings: compiler.AnalyzeCalls(m),
	}
	m.Walk(func(*ir.Op) { result.Ops++ })
	result.Valid = len(result.Errors) == 0
	formatter.VerboseLog("Validated @%s: %d function(s), %d op(s)", m.Name, result.Funcs, result.Ops)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Module @%s valid (%d function(s), %d op(s))\n", result.Module, result.Funcs, result.Ops)
	printWarnings(formatter, result.Warnings)
	return nil
}

// outputValidationErrors reports structural errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	printWarnings(formatter, result.Warnings)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func printWarnings(formatter *OutputFormatter, warnings []compiler.CycleWarning) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
}
