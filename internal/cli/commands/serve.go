package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqltrace/internal/server"
	"github.com/leapstack-labs/sqltrace/internal/state"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	NoStore bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP endpoint",
		Long: `Start an HTTP server that analyzes SQL posted to /analyze.

Unless --no-store is given, every analysis is recorded in the state
database and the /runs, /lineage and /events routes are enabled.`,
		Example: `  sqltrace serve --addr :8080
  curl -s localhost:8080/analyze -d '{"sql":"SELECT a FROM t"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Address to listen on (default from config, :5000)")
	cmd.Flags().Int64("max-body-bytes", 0, "Largest accepted request body (default from config, 1 MiB)")
	cmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "Do not persist analyses")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc := NewCommandContext(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store state.Store
	if !opts.NoStore {
		s, err := cc.OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	srv := server.New(server.Config{
		Analyzer:          cc.Analyzer,
		Store:             store,
		Addr:              cc.Cfg.Server.Addr,
		ReadHeaderTimeout: cc.Cfg.Server.ReadHeaderTimeout,
		MaxBodyBytes:      cc.Cfg.Server.MaxBodyBytes,
		Logger:            cc.Logger,
	})

	_, _ = fmt.Fprintf(cc.Renderer.ErrWriter(), "Listening on %s (Ctrl+C to stop)\n", cc.Cfg.Server.Addr)
	return srv.Serve(ctx)
}
