package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqltrace/internal/cli/output"
)

const (
	replPrompt         = "sqltrace> "
	replContinuePrompt = "     ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Analyze SQL interactively",
		Long: `Start an interactive session. Statements accumulate until a line ends
with a semicolon, then the batch is analyzed and rendered.

Type .help for commands, .quit to exit.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cmd)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     replHistoryFile(cc.Cfg.StatePath),
		AutoComplete:    newREPLCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	session := newREPLSession(cc, cmd.OutOrStdout(), cmd.ErrOrStderr())

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "sqltrace REPL")
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			session.reset()
			rl.SetPrompt(session.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if quit := session.handleLine(line); quit {
			return nil
		}
		rl.SetPrompt(session.prompt())
	}
}

// replHistoryFile keeps REPL history next to the state database. In-memory
// state has no directory, so history is not kept.
func replHistoryFile(statePath string) string {
	if statePath == "" || statePath == ":memory:" {
		return ""
	}
	dir := filepath.Dir(statePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}

// replSession is the REPL state independent of the terminal.
type replSession struct {
	cc      *CommandContext
	out     io.Writer
	errOut  io.Writer
	pending strings.Builder
}

func newREPLSession(cc *CommandContext, out, errOut io.Writer) *replSession {
	return &replSession{cc: cc, out: out, errOut: errOut}
}

func (s *replSession) prompt() string {
	if s.pending.Len() > 0 {
		return replContinuePrompt
	}
	return replPrompt
}

func (s *replSession) reset() {
	s.pending.Reset()
}

// handleLine processes one input line and reports whether the session should end.
func (s *replSession) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dotCommand(line)
	}

	if s.pending.Len() > 0 {
		s.pending.WriteString(" ")
	}
	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		return false
	}

	batch := s.pending.String()
	s.pending.Reset()

	if err := s.cc.Renderer.RenderResult(s.cc.Analyzer.Analyze(batch)); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return false
}

func (s *replSession) dotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".mode":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "Current mode: %s\n", s.cc.Renderer.EffectiveMode())
			return false
		}
		mode, err := output.ParseMode(parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		s.cc.Renderer = output.NewRendererWithTTY(s.out, s.errOut, s.cc.Renderer.IsTTY(), mode)
		_, _ = fmt.Fprintf(s.out, "Output mode set to %s\n", s.cc.Renderer.EffectiveMode())

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .mode [format]  Show or set the output format (auto|text|markdown|json|yaml)
  .quit / .exit   Exit the REPL

Tips:
  - A batch is analyzed when a line ends with a semicolon (;)
  - Press Ctrl+C to discard a partial batch
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newREPLCompleter() *readline.PrefixCompleter {
	modes := make([]readline.PrefixCompleterInterface, 0, 5)
	for _, m := range []output.Mode{output.ModeAuto, output.ModeText, output.ModeMarkdown, output.ModeJSON, output.ModeYAML} {
		modes = append(modes, readline.PcItem(string(m)))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".mode", modes...),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
