package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cpurt/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Target   string // optional - filter to one runtime target
	List     bool
}

// TraceEvent is one recorded rewrite in the timeline.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Pattern string          `json:"pattern"`
	Op      string          `json:"op"`
	Func    string          `json:"func"`
	Target  string          `json:"target,omitempty"`
	Attrs   json.RawMessage `json:"attrs"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run          store.Run           `json:"run"`
	Timeline     []TraceEvent        `json:"timeline"`
	Declarations []store.Declaration `json:"declarations"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded rewrites of a lowering run",
		Long: `Read a run recorded by "cpurt lower --db" back from the database.

Shows the run summary, each rewrite in the order it was applied and the
runtime declarations the run introduced.

Examples:
  cpurt trace --db ./cpurt.db
  cpurt trace --db ./cpurt.db --list
  cpurt trace --db ./cpurt.db --run 0191d7f2-... --target xla.cpu.infeed
  cpurt trace --db ./cpurt.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "filter to one runtime target")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")
	cmd.MarkFlagsMutuallyExclusive("list", "run")
	cmd.MarkFlagsMutuallyExclusive("list", "target")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmdContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// store.Open creates missing files; a typo should not leave an empty database behind.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		return outputRunList(formatter, runs)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if opts.RunID != "" {
			return WrapExitError(ExitFailure, fmt.Sprintf("run not found: %s", opts.RunID), err)
		}
		if opts.Format == "json" {
			return formatter.Success(nil)
		}
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	rewrites, err := st.ReadRewrites(ctx, run.ID, opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rewrites", err)
	}
	decls, err := st.ReadDeclarations(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read declarations", err)
	}

	result := TraceResult{
		Run:          run,
		Timeline:     buildTimeline(rewrites),
		Declarations: decls,
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTimeline converts stored rewrites to timeline events.
func buildTimeline(rewrites []store.Rewrite) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(rewrites))
	for _, r := range rewrites {
		timeline = append(timeline, TraceEvent{
			Seq:     r.Seq,
			Pattern: r.Pattern,
			Op:      r.Op,
			Func:    r.Func,
			Target:  r.Target,
			Attrs:   json.RawMessage(r.Attrs),
		})
	}
	return timeline
}

func outputRunList(formatter *OutputFormatter, runs []store.Run) error {
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "[%d] %s @%s %s (%d rewrites)\n", run.Seq, run.ID, run.Module, runStatus(run), run.Rewrites)
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Module: @%s\n", run.Module)
	fmt.Fprintf(w, "Status: %s\n", runStatus(run))
	if verbose {
		fmt.Fprintf(w, "Input:  %s\n", run.InputFingerprint)
		fmt.Fprintf(w, "Output: %s\n", run.OutputFingerprint)
		fmt.Fprintf(w, "Tool:   %s (ir %s)\n", run.ToolVersion, run.IRVersion)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Rewrites ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no rewrites)")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s in @%s", e.Seq, e.Op, e.Func)
		if e.Target != "" {
			fmt.Fprintf(w, " -> @%s", e.Target)
		}
		fmt.Fprintln(w)
		if verbose {
			fmt.Fprintf(w, "       Pattern: %s\n", e.Pattern)
			fmt.Fprintf(w, "       Attrs:   %s\n", e.Attrs)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Declarations ===")
	if len(result.Declarations) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, d := range result.Declarations {
		fmt.Fprintf(w, "  @%s %s\n", d.Symbol, d.Signature)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Rewrites:   %d\n", run.Rewrites)
	fmt.Fprintf(w, "  Iterations: %d\n", run.Iterations)
}

func runStatus(run store.Run) string {
	if run.ErrorCode != "" {
		return run.Status + " [" + run.ErrorCode + "]"
	}
	return run.Status
}
