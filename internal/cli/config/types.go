// Package config provides configuration management for the sqltrace CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	OutputFormat string        `koanf:"output"`
	Verbose      bool          `koanf:"verbose"`
	LogLevel     string        `koanf:"log_level"`
	StatePath    string        `koanf:"state_path"`
	Server       ServerConfig  `koanf:"server"`
	Analyze      AnalyzeConfig `koanf:"analyze"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
}

// AnalyzeConfig holds configuration for the analyze command.
type AnalyzeConfig struct {
	Save        bool `koanf:"save"`
	Concurrency int  `koanf:"concurrency"`
}

// Default configuration values.
const (
	DefaultStateFile          = ".sqltrace/state.db"
	DefaultOutput             = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel           = "warn"
	DefaultServerAddr         = ":5000"
	DefaultReadHeaderTimeout  = 10 * time.Second
	DefaultMaxBodyBytes int64 = 1 << 20
	DefaultConcurrency        = 4
)

// Config file names searched for, in order.
var configFileNames = []string{"sqltrace.yaml", "sqltrace.yml"}

// envPrefix is the prefix of environment variables read into the config.
const envPrefix = "SQLTRACE_"

// sections are the nested config blocks; SQLTRACE_SERVER_ADDR maps to server.addr.
var sections = []string{"server", "analyze"}

// flagKeys maps CLI flag names that differ from their config key.
var flagKeys = map[string]string{
	"state":          "state_path",
	"addr":           "server.addr",
	"max-body-bytes": "server.max_body_bytes",
	"save":           "analyze.save",
	"concurrency":    "analyze.concurrency",
}
