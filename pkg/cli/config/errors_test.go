package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{
			name:     "ErrConfigNotFound can be identified",
			err:      goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinel: config.ErrConfigNotFound,
		},
		{
			name:     "ErrInvalidConfig can be identified",
			err:      goerr.Wrap(config.ErrInvalidConfig, "validation failed"),
			sentinel: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Bool(t, errors.Is(tt.err, tt.sentinel)).True()
		})
	}

	t.Run("sentinels are distinct", func(t *testing.T) {
		gt.Bool(t, errors.Is(config.ErrConfigNotFound, config.ErrInvalidConfig)).False()
	})
}
