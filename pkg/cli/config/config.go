package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the application configuration file
type AppConfig struct {
	PartitionKey             string      `toml:"partition_key"`
	StatusDisplay            string      `toml:"status_display"`
	AutoCloseNote            string      `toml:"auto_close_note"`
	ConsistencyCheckInterval string      `toml:"consistency_check_interval"`
	Retry                    RetryConfig `toml:"retry"`
}

// RetryConfig controls retrying of transient store failures
type RetryConfig struct {
	MaxAttempts     int    `toml:"max_attempts"`
	InitialInterval string `toml:"initial_interval"`
	MaxInterval     string `toml:"max_interval"`
}

// DefaultAppConfig returns the configuration used when no file is given
func DefaultAppConfig() *AppConfig {
	p := usecase.DefaultRetryPolicy()
	return &AppConfig{
		PartitionKey:             types.PartitionKeySource.String(),
		StatusDisplay:            string(types.StatusDisplayLabel),
		AutoCloseNote:            usecase.DefaultAutoCloseNote,
		ConsistencyCheckInterval: "0s",
		Retry: RetryConfig{
			MaxAttempts:     p.MaxAttempts,
			InitialInterval: p.InitialInterval.String(),
			MaxInterval:     p.MaxInterval.String(),
		},
	}
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidConfig, "invalid duration", goerr.V("field", field), goerr.V("value", s))
	}
	if d < 0 {
		return 0, goerr.Wrap(ErrInvalidConfig, "duration must not be negative", goerr.V("field", field), goerr.V("value", s))
	}
	return d, nil
}

// Validate checks if the RetryConfig is valid
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 0 {
		return goerr.Wrap(ErrInvalidConfig, "max_attempts must not be negative", goerr.V("max_attempts", r.MaxAttempts))
	}
	initial, err := parseDuration("retry.initial_interval", r.InitialInterval)
	if err != nil {
		return err
	}
	maxInterval, err := parseDuration("retry.max_interval", r.MaxInterval)
	if err != nil {
		return err
	}
	if maxInterval < initial {
		return goerr.Wrap(ErrInvalidConfig, "retry.max_interval is shorter than retry.initial_interval",
			goerr.V("initial_interval", r.InitialInterval), goerr.V("max_interval", r.MaxInterval))
	}
	return nil
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if !types.PartitionKey(a.PartitionKey).IsValid() {
		return goerr.Wrap(ErrInvalidConfig, "invalid partition_key", goerr.V("partition_key", a.PartitionKey))
	}
	if !types.StatusDisplay(a.StatusDisplay).IsValid() {
		return goerr.Wrap(ErrInvalidConfig, "invalid status_display", goerr.V("status_display", a.StatusDisplay))
	}
	if a.AutoCloseNote == "" {
		return goerr.Wrap(ErrInvalidConfig, "auto_close_note must not be empty")
	}
	if _, err := parseDuration("consistency_check_interval", a.ConsistencyCheckInterval); err != nil {
		return err
	}
	if err := a.Retry.Validate(); err != nil {
		return goerr.Wrap(err, "invalid retry config")
	}
	return nil
}

// CheckInterval returns how often the consistency check runs. Zero disables it.
func (a *AppConfig) CheckInterval() time.Duration {
	d, _ := time.ParseDuration(a.ConsistencyCheckInterval)
	return d
}

// Display returns the configured status rendering
func (a *AppConfig) Display() types.StatusDisplay {
	return types.StatusDisplay(a.StatusDisplay)
}

// UseCaseOptions converts the configuration into use case options. Call Validate first.
func (a *AppConfig) UseCaseOptions() []usecase.Option {
	initial, _ := time.ParseDuration(a.Retry.InitialInterval)
	maxInterval, _ := time.ParseDuration(a.Retry.MaxInterval)

	return []usecase.Option{
		usecase.WithPartitionKey(types.PartitionKey(a.PartitionKey)),
		usecase.WithAutoCloseNote(a.AutoCloseNote),
		usecase.WithRetryPolicy(usecase.RetryPolicy{
			MaxAttempts:     a.Retry.MaxAttempts,
			InitialInterval: initial,
			MaxInterval:     maxInterval,
		}),
	}
}

func (a AppConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("partition_key", a.PartitionKey),
		slog.String("status_display", a.StatusDisplay),
		slog.String("consistency_check_interval", a.ConsistencyCheckInterval),
		slog.Int("retry_max_attempts", a.Retry.MaxAttempts),
	)
}

// LoadAppConfiguration loads the application configuration from a TOML file.
// Keys missing from the file keep their default values.
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	config := DefaultAppConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return config, nil
}

// App holds the --config flag
type App struct {
	path string
}

func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the application config file (TOML)",
			Sources:     cli.EnvVars("VULNAPPROVAL_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the config file, or the defaults when no path is set
func (a *App) Configure() (*AppConfig, error) {
	if a.path == "" {
		return DefaultAppConfig(), nil
	}
	return LoadAppConfiguration(a.path)
}
