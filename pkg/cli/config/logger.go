package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Logger holds CLI flags for the process wide logger
type Logger struct {
	level  string
	format string
	output string
}

func (l *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Category:    "Logging",
			Sources:     cli.EnvVars("VULNAPPROVAL_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Category:    "Logging",
			Sources:     cli.EnvVars("VULNAPPROVAL_LOG_FORMAT"),
			Destination: &l.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output (stdout, stderr, or a file path)",
			Value:       "stdout",
			Category:    "Logging",
			Sources:     cli.EnvVars("VULNAPPROVAL_LOG_OUTPUT"),
			Destination: &l.output,
		},
	}
}

func (l Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", l.level),
		slog.String("format", l.format),
		slog.String("output", l.output),
	)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, goerr.Wrap(ErrInvalidConfig, "invalid log level", goerr.V("level", s))
	}
}

// Configure builds the logger and installs it as the default. The returned
// function closes the log file if one was opened.
func (l *Logger) Configure() (func(), error) {
	level, err := parseLogLevel(l.level)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	closer := func() {}
	switch l.output {
	case "", "stdout", "-":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		// #nosec G304 - path is provided by CLI flag
		f, err := os.OpenFile(l.output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", l.output))
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("DSN"),
	)

	var handler slog.Handler
	switch l.format {
	case "", "console":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithColor(w == os.Stdout || w == os.Stderr),
			clog.WithReplaceAttr(filter),
		)
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: filter,
		})
	default:
		closer()
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid log format", goerr.V("format", l.format))
	}

	logging.SetDefault(slog.New(handler))
	return closer, nil
}
