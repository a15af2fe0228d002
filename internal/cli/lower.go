package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/lowering"
	"github.com/roach88/cpurt/internal/rewrite"
	"github.com/roach88/cpurt/internal/store"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Output        string
	Database      string
	Verify        bool
	MaxIterations int
	MaxRewrites   int

	// RunIDs overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs rewrite.RunIDGenerator
}

// LowerSummary is the JSON payload of a lower run.
type LowerSummary struct {
	Module            string                 `json:"module"`
	RunID             string                 `json:"run_id"`
	Rewrites          int                    `json:"rewrites"`
	Iterations        int                    `json:"iterations"`
	Changed           bool                   `json:"changed"`
	InputFingerprint  string                 `json:"input_fingerprint"`
	OutputFingerprint string                 `json:"output_fingerprint"`
	Declarations      []lowering.Declaration `json:"declarations"`
	OutputFile        string                 `json:"output_file,omitempty"`
	IR                string                 `json:"ir,omitempty"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lower <module.cue|module-dir>",
		Short: "Lower a module to runtime calls",
		Long: `Lower every supported op of a module to calls into the CPU runtime.

The module is read from a CUE file or a CUE package directory. The lowered
module is printed to stdout, or written to --output. With --db, the run,
its rewrites and the resulting declarations are appended to a SQLite run log.

Exit codes:
  0 - Module lowered
  1 - Lowering or verification failed
  2 - Command error (unreadable module, database error, etc.)

Examples:
  cpurt lower ./model.cue
  cpurt lower ./model --verify -o lowered.mlir
  cpurt lower ./model.cue --db ./cpurt.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyLowerDefaults(opts, cmd)
			return runLower(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the lowered module to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "append the run to this SQLite run log")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "validate the module before and after lowering")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", rewrite.DefaultMaxIterations, "sweep limit of the rewrite driver")
	cmd.Flags().IntVar(&opts.MaxRewrites, "max-rewrites", rewrite.DefaultMaxRewrites, "rewrite quota of one run (0 disables)")

	return cmd
}

// applyLowerDefaults fills flags the user did not set from the config file.
func applyLowerDefaults(opts *LowerOptions, cmd *cobra.Command) {
	cfg := opts.Config
	if cfg == nil {
		return
	}
	flags := cmd.Flags()
	if !flags.Changed("db") {
		opts.Database = cfg.Database
	}
	if !flags.Changed("verify") {
		opts.Verify = cfg.Verify
	}
	if !flags.Changed("max-iterations") {
		opts.MaxIterations = cfg.MaxIterations
	}
	if !flags.Changed("max-rewrites") {
		opts.MaxRewrites = cfg.MaxRewrites
	}
}

func runLower(opts *LowerOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := LoadModule(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded module @%s from %s", m.Name, path)

	// Run log bookkeeping outlives an interrupt so a cancelled run is
	// still recorded as CANCELLED.
	storeCtx := context.WithoutCancel(ctx)

	var st *store.Store
	clock := rewrite.NewClock()
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		last, err := st.LastSeq(storeCtx)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read run log", err)
		}
		clock = rewrite.NewClockAt(last)
	}

	rec := store.NewRecorder()
	rewriteOpts := []rewrite.Option{
		rewrite.WithLogger(formatter.Logger()),
		rewrite.WithListener(rec),
		rewrite.WithClock(clock),
		rewrite.WithMaxIterations(opts.MaxIterations),
		rewrite.WithMaxRewrites(opts.MaxRewrites),
	}
	if opts.RunIDs != nil {
		rewriteOpts = append(rewriteOpts, rewrite.WithRunIDGenerator(opts.RunIDs))
	}

	res, lowerErr := lowering.Run(ctx, m,
		lowering.WithVerify(opts.Verify),
		lowering.WithRewriteOptions(rewriteOpts...),
	)

	if st != nil {
		run, decls, ok := store.RunRecord(m.Name, res, lowerErr, clock.Next())
		if ok {
			if err := st.RecordRun(storeCtx, run, rec.Events(), decls); err != nil {
				_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to record run", err)
			}
			formatter.VerboseLog("Recorded run %s (%d rewrites) in %s", run.ID, run.Rewrites, opts.Database)
		}
	}

	if lowerErr != nil {
		_ = formatter.Error(lowering.ErrorCodeOf(lowerErr), lowerErr.Error(), nil)
		return WrapExitError(ExitFailure, "lowering failed", lowerErr)
	}

	out := ir.Print(m)
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(out), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	return outputLowerSuccess(formatter, m.Name, res, out, opts.Output)
}

func outputLowerSuccess(formatter *OutputFormatter, module string, res *lowering.Result, out, outputFile string) error {
	if formatter.Format == "json" {
		summary := LowerSummary{
			Module:            module,
			RunID:             res.RunID,
			Rewrites:          res.Rewrites,
			Iterations:        res.Iterations,
			Changed:           res.Changed,
			InputFingerprint:  res.InputFingerprint,
			OutputFingerprint: res.OutputFingerprint,
			Declarations:      res.Declarations,
			OutputFile:        outputFile,
		}
		if summary.Declarations == nil {
			summary.Declarations = []lowering.Declaration{}
		}
		if outputFile == "" {
			summary.IR = out
		}
		return formatter.Respond(CLIResponse{Status: "ok", Data: summary, RunID: res.RunID})
	}

	if outputFile == "" {
		fmt.Fprint(formatter.Writer, out)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ Lowered @%s: %d rewrite(s), %d declaration(s)\n",
		module, res.Rewrites, len(res.Declarations))
	fmt.Fprintf(formatter.Writer, "Wrote lowered module to %s\n", outputFile)
	return nil
}

// cmdContext returns the command's context, or Background when the command
// was executed without one.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
