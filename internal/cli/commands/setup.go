package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqltrace/internal/cli/config"
	"github.com/leapstack-labs/sqltrace/internal/cli/output"
	"github.com/leapstack-labs/sqltrace/internal/state"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Analyzer *sqltrace.Analyzer
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an analyzer and renderer.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Analyzer: sqltrace.New(sqltrace.WithLogger(logger)),
		Renderer: r,
	}
}

// OpenStore opens the analysis history at the configured state path.
// The caller must close it.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	store, err := state.Open(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	c.Logger.Debug("opened state database", "path", c.Cfg.StatePath)
	return store, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	concurrency, err := strconv.Atoi(os.Getenv("SQLTRACE_ANALYZE_CONCURRENCY"))
	if err != nil || concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}

	return &config.Config{
		OutputFormat: getEnvOrDefault("SQLTRACE_OUTPUT", config.DefaultOutput),
		Verbose:      os.Getenv("SQLTRACE_VERBOSE") == "true",
		LogLevel:     getEnvOrDefault("SQLTRACE_LOG_LEVEL", config.DefaultLogLevel),
		StatePath:    getEnvOrDefault("SQLTRACE_STATE_PATH", config.DefaultStateFile),
		Server: config.ServerConfig{
			Addr:              getEnvOrDefault("SQLTRACE_SERVER_ADDR", config.DefaultServerAddr),
			ReadHeaderTimeout: config.DefaultReadHeaderTimeout,
			MaxBodyBytes:      config.DefaultMaxBodyBytes,
		},
		Analyze: config.AnalyzeConfig{
			Save:        os.Getenv("SQLTRACE_ANALYZE_SAVE") == "true",
			Concurrency: concurrency,
		},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
