package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Sentry holds CLI flags for error reporting
type Sentry struct {
	dsn string
	env string
}

func (s *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN. Server errors are reported when set",
			Category:    "Sentry",
			Sources:     cli.EnvVars("VULNAPPROVAL_SENTRY_DSN"),
			Destination: &s.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Category:    "Sentry",
			Sources:     cli.EnvVars("VULNAPPROVAL_SENTRY_ENV"),
			Destination: &s.env,
		},
	}
}

func (s Sentry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", s.dsn != ""),
		slog.String("env", s.env),
	)
}

// Configure initializes the global Sentry client. Without a DSN it does
// nothing. The returned function flushes pending events.
func (s *Sentry) Configure(release string) (func(), error) {
	if s.dsn == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         s.dsn,
		Environment: s.env,
		Release:     release,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize sentry")
	}
	logging.Default().Info("Sentry enabled", "env", s.env)

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}
