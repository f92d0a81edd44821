package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

func TestFrom(t *testing.T) {
	t.Run("falls back to default logger", func(t *testing.T) {
		gt.Value(t, logging.From(context.Background())).Equal(logging.Default())
	})

	t.Run("returns logger embedded in context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		ctx := logging.With(context.Background(), logger)

		logging.From(ctx).Info("hello", "approval_id", "APP-1")
		gt.String(t, buf.String()).Contains("APP-1")
	})
}
