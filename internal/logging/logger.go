package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/terrylica/ralph-universal/internal/config"
)

// Options controls where diagnostics go.
type Options struct {
	// Level applies to the console stream. The file always records info and up.
	Level string
	// Console receives human-readable output; defaults to os.Stderr.
	Console io.Writer
	// NoFile disables the .claude/ru-loop.log sink.
	NoFile bool
}

// Logger writes diagnostics to stderr and appends JSON lines to
// .claude/ru-loop.log so hook failures can be inspected after the session.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New creates the logger for projectDir. A log file that cannot be opened is
// not fatal; the console stream still works.
func New(projectDir string, opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	consoleWriter := zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}}
	writers := []io.Writer{filteredWriter{LevelWriter: consoleWriter, min: level}}

	l := &Logger{}
	var openErr error
	if !opts.NoFile && projectDir != "" {
		dir := filepath.Join(projectDir, config.ClaudeDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			openErr = fmt.Errorf("logging: ensure log dir: %w", err)
		} else {
			f, err := os.OpenFile(filepath.Join(dir, config.LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				openErr = fmt.Errorf("logging: open log file: %w", err)
			} else {
				l.file = f
				writers = append(writers, filteredWriter{LevelWriter: zerolog.LevelWriterAdapter{Writer: f}, min: zerolog.InfoLevel})
			}
		}
	}
	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	if openErr != nil {
		l.Warn().Err(openErr).Msg("file logging disabled")
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// ParseLevel maps a level name onto zerolog; empty means info.
func ParseLevel(value string) (zerolog.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", value)
	}
	return level, nil
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// filteredWriter drops events below min so each sink keeps its own level.
type filteredWriter struct {
	zerolog.LevelWriter
	min zerolog.Level
}

func (w filteredWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.LevelWriter.WriteLevel(level, p)
}
