package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqltrace/internal/cli/output"
	"github.com/leapstack-labs/sqltrace/internal/state"
	"github.com/leapstack-labs/sqltrace/internal/watcher"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// stdinSource labels input read from standard input.
const stdinSource = "stdin"

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	Watch bool
}

// analysis is one analyzed input.
type analysis struct {
	Source string           `json:"source" yaml:"source"`
	RunID  string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Result *sqltrace.Result `json:"result" yaml:"result"`

	path string
	sql  string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [files...|-]",
		Short: "Analyze SQL statements",
		Long: `Analyze SQL files, or standard input when no file (or "-") is given.

Each input is split into statements and reported as a statement summary,
table-level lineage and column traceability. Files are analyzed concurrently.`,
		Example: `  # Analyze a file
  sqltrace analyze queries/daily.sql

  # Analyze stdin as JSON
  echo "INSERT INTO t SELECT a FROM s" | sqltrace analyze -o json

  # Record runs and re-analyze on change
  sqltrace analyze --save --watch etl/*.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().Bool("save", false, "Persist each analysis to the state database")
	cmd.Flags().Int("concurrency", 0, "Maximum files analyzed at once (default from config)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-analyze files when they change")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	paths, useStdin := splitInputs(args)
	if opts.Watch && (useStdin || len(paths) == 0) {
		return errors.New("--watch requires file arguments")
	}

	var store state.Store
	if cc.Cfg.Analyze.Save {
		s, err := cc.OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	var inputs []*analysis
	if useStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		inputs = append(inputs, &analysis{Source: stdinSource, sql: string(data)})
	}
	for _, p := range paths {
		inputs = append(inputs, &analysis{Source: p, path: p})
	}

	if err := analyzeAll(ctx, cc, inputs); err != nil {
		return err
	}
	if err := saveAll(ctx, cc, store, inputs); err != nil {
		return err
	}
	if err := renderAnalyses(cc.Renderer, inputs); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	return watchFiles(cmd, cc, store, paths)
}

// splitInputs separates file paths from the stdin marker. No arguments means stdin.
func splitInputs(args []string) (paths []string, useStdin bool) {
	if len(args) == 0 {
		return nil, true
	}
	for _, a := range args {
		if a == "-" {
			useStdin = true
			continue
		}
		paths = append(paths, a)
	}
	return paths, useStdin
}

// analyzeAll reads and analyzes inputs with bounded concurrency. Inputs
// with a path are read from disk first.
func analyzeAll(ctx context.Context, cc *CommandContext, inputs []*analysis) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cc.Cfg.Analyze.Concurrency)

	for _, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if in.path != "" {
				data, err := os.ReadFile(in.path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", in.path, err)
				}
				in.sql = string(data)
			}
			in.Result = cc.Analyzer.Analyze(in.sql)
			cc.Logger.Debug("analyzed input",
				"source", in.Source,
				"statements", len(in.Result.StatementSummary),
				"edges", len(in.Result.Lineage.Edges))
			return nil
		})
	}
	return g.Wait()
}

// saveAll persists inputs in order. A nil store is a no-op.
func saveAll(ctx context.Context, cc *CommandContext, store state.Store, inputs []*analysis) error {
	if store == nil {
		return nil
	}
	for _, in := range inputs {
		run, err := store.SaveRun(ctx, in.Source, in.sql, in.Result)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", in.Source, err)
		}
		in.RunID = run.ID
		cc.Logger.Info("saved run", "id", run.ID, "source", in.Source)
	}
	return nil
}

// renderAnalyses writes one Result for a single input, or every input in order.
func renderAnalyses(r *output.Renderer, inputs []*analysis) error {
	if len(inputs) == 1 {
		if ok, err := r.Structured(inputs[0].Result); ok {
			return err
		}
	}
	if ok, err := r.Structured(inputs); ok {
		return err
	}

	for _, in := range inputs {
		if len(inputs) > 1 || in.path != "" {
			r.Header(1, in.Source)
		}
		if in.RunID != "" {
			r.Muted("Saved as run " + in.RunID)
			r.Println()
		}
		if err := r.RenderResult(in.Result); err != nil {
			return err
		}
	}
	return nil
}

// watchFiles re-analyzes changed files until interrupted.
func watchFiles(cmd *cobra.Command, cc *CommandContext, store state.Store, paths []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(paths, watcher.WithLogger(cc.Logger))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cc.Renderer.ErrWriter(), "Watching %d file(s). Press Ctrl+C to stop.\n", len(paths))
	return w.Run(ctx, func(changed []string) {
		inputs := make([]*analysis, 0, len(changed))
		for _, p := range changed {
			inputs = append(inputs, &analysis{Source: p, path: p})
		}
		if err := analyzeAll(ctx, cc, inputs); err != nil {
			cc.Renderer.Error(err.Error())
			return
		}
		if err := saveAll(ctx, cc, store, inputs); err != nil {
			cc.Renderer.Error(err.Error())
			return
		}
		if err := renderAnalyses(cc.Renderer, inputs); err != nil {
			cc.Renderer.Error(err.Error())
		}
	})
}
