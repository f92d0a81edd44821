package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

// Close closes closer and logs a failure instead of returning it. A nil closer
// is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Write writes data to w after the response header is committed, when there
// is nobody left to return an error to.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("Failed to write response", slog.Any("error", err), slog.Int("bytes", len(data)))
	}
}
