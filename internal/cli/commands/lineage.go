package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqltrace/internal/cli/output"
	"github.com/leapstack-labs/sqltrace/internal/dag"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
	File       string
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <table>",
		Short: "Show upstream and downstream tables",
		Long: `Display the tables a table reads from and the tables that read from it.

The graph is rebuilt from the lineage edges of every recorded run, or from a
single SQL file with --file. Table names are matched case-insensitively.`,
		Example: `  # Full lineage across all recorded runs
  sqltrace lineage mart.orders

  # Only direct sources
  sqltrace lineage mart.orders --downstream=false --depth 1

  # Lineage of one script without recording it
  sqltrace lineage stage --file etl/load.sql -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream tables")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream tables")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Build the graph from this SQL file instead of recorded runs")

	return cmd
}

func runLineage(cmd *cobra.Command, table string, opts *LineageOptions) error {
	cc := NewCommandContext(cmd)

	edges, err := lineageEdges(cmd, cc, opts.File)
	if err != nil {
		return err
	}

	graph := dag.FromEdges(edges)
	if hasCycle, path := graph.HasCycle(); hasCycle {
		cc.Logger.Warn("lineage contains a cycle", "path", strings.Join(path, " -> "))
	}

	id := strings.ToUpper(strings.TrimSpace(table))
	out := output.LineageOutput{Table: id}

	if opts.Upstream {
		out.Upstream, err = graph.Upstream(id, opts.Depth)
		if err != nil {
			return lineageError(id, err)
		}
	}
	if opts.Downstream {
		out.Downstream, err = graph.Downstream(id, opts.Depth)
		if err != nil {
			return lineageError(id, err)
		}
	}
	if !graph.HasNode(id) {
		return lineageError(id, dag.ErrNodeNotFound)
	}

	return cc.Renderer.RenderLineage(out)
}

// lineageEdges returns the edges of a fresh analysis of file, or every
// recorded edge when file is empty.
func lineageEdges(cmd *cobra.Command, cc *CommandContext, file string) ([]sqltrace.Edge, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		return cc.Analyzer.Analyze(string(data)).Lineage.Edges, nil
	}

	store, err := cc.OpenStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return store.LineageEdges(cmd.Context())
}

func lineageError(id string, err error) error {
	if errors.Is(err, dag.ErrNodeNotFound) {
		return fmt.Errorf("table %q does not appear in any lineage edge", id)
	}
	return err
}
