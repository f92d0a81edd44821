package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	"github.com/secmon-lab/vulnapproval/pkg/domain/types"
	"github.com/secmon-lab/vulnapproval/pkg/service/cache"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadAppConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		check   func(t *testing.T, cfg *config.AppConfig)
	}{
		{
			name: "full configuration",
			content: `
partition_key = "project_number"
status_display = "code"
auto_close_note = "closed by the engine"
consistency_check_interval = "10m"

[retry]
max_attempts = 5
initial_interval = "100ms"
max_interval = "2s"
`,
			check: func(t *testing.T, cfg *config.AppConfig) {
				gt.Value(t, cfg.PartitionKey).Equal("project_number")
				gt.Value(t, cfg.Display()).Equal(types.StatusDisplayCode)
				gt.Value(t, cfg.AutoCloseNote).Equal("closed by the engine")
				gt.Value(t, cfg.CheckInterval()).Equal(10 * time.Minute)
				gt.Number(t, cfg.Retry.MaxAttempts).Equal(5)
			},
		},
		{
			name:    "missing keys keep defaults",
			content: `status_display = "code"`,
			check: func(t *testing.T, cfg *config.AppConfig) {
				def := config.DefaultAppConfig()
				gt.Value(t, cfg.PartitionKey).Equal(def.PartitionKey)
				gt.Value(t, cfg.AutoCloseNote).Equal(def.AutoCloseNote)
				gt.Value(t, cfg.Retry).Equal(def.Retry)
				gt.Value(t, cfg.CheckInterval()).Equal(time.Duration(0))
			},
		},
		{
			name:    "unknown partition key",
			content: `partition_key = "team"`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "unknown status display",
			content: `status_display = "emoji"`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "empty auto close note",
			content: `auto_close_note = ""`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "malformed interval",
			content: `consistency_check_interval = "often"`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "max interval shorter than initial",
			content: `
[retry]
initial_interval = "5s"
max_interval = "1s"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "negative attempts",
			content: `
[retry]
max_attempts = -1
`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadAppConfiguration(writeConfig(t, tt.content))
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err).Required()
			tt.check(t, cfg)
		})
	}
}

func TestLoadAppConfiguration_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "none.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})

	t.Run("broken TOML", func(t *testing.T) {
		_, err := config.LoadAppConfiguration(writeConfig(t, `partition_key = `))
		gt.Value(t, err).NotNil()
	})
}

func TestApp_Configure(t *testing.T) {
	t.Run("defaults without path", func(t *testing.T) {
		cfg, err := config.NewAppForTest("").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, cfg).Equal(config.DefaultAppConfig())
		gt.NoError(t, cfg.Validate())
		gt.Array(t, cfg.UseCaseOptions()).Length(3)
	})

	t.Run("loads file", func(t *testing.T) {
		path := writeConfig(t, `partition_key = "project_number"`)
		cfg, err := config.NewAppForTest(path).Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, cfg.PartitionKey).Equal("project_number")
	})
}

func TestCache_Configure(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		c, closer, err := config.NewCacheForTest(config.CacheNone, time.Minute, "").Configure(ctx)
		gt.NoError(t, err).Required()
		defer closer()
		_, ok := c.(cache.Nop)
		gt.Bool(t, ok).True()
	})

	t.Run("memory", func(t *testing.T) {
		c, closer, err := config.NewCacheForTest(config.CacheMemory, time.Minute, "").Configure(ctx)
		gt.NoError(t, err).Required()
		defer closer()
		_, ok := c.(*cache.Memory)
		gt.Bool(t, ok).True()
	})

	t.Run("redis without address", func(t *testing.T) {
		_, _, err := config.NewCacheForTest(config.CacheRedis, time.Minute, "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := config.NewCacheForTest("memcached", time.Minute, "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestRepository_Configure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest(config.BackendMemory).Configure(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, repo).NotNil()
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("mysql").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestLogger_Configure(t *testing.T) {
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Debug("hello")
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains(`"msg":"hello"`)
	})

	t.Run("level filters lower records", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("warn", "json", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Info("dropped")
		logging.Default().Warn("kept")
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.Bool(t, strings.Contains(string(data), "dropped")).False()
		gt.String(t, string(data)).Contains("kept")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
