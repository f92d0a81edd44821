package errutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vulnapproval/pkg/utils/errutil"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

func newCtx(buf *bytes.Buffer) context.Context {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logging.With(context.Background(), logger)
}

func TestHandle(t *testing.T) {
	var buf bytes.Buffer
	ctx := newCtx(&buf)

	err := goerr.New("lock failed", goerr.V("approval_id", "APP-1"))
	gt.Error(t, errutil.Handle(ctx, err, "remove member failed")).Is(err)

	gt.String(t, buf.String()).Contains("remove member failed")
	gt.String(t, buf.String()).Contains("APP-1")
	gt.NoError(t, errutil.Handle(ctx, nil, "nothing"))
}

func TestHandleHTTP(t *testing.T) {
	t.Run("client errors are logged at warn", func(t *testing.T) {
		var buf bytes.Buffer
		errutil.HandleHTTP(newCtx(&buf), goerr.New("bad request"), http.StatusBadRequest)
		gt.String(t, buf.String()).Contains(`"level":"WARN"`)
	})

	t.Run("server errors are logged at error", func(t *testing.T) {
		var buf bytes.Buffer
		errutil.HandleHTTP(newCtx(&buf), goerr.New("store down"), http.StatusServiceUnavailable)
		gt.String(t, buf.String()).Contains(`"level":"ERROR"`)
	})
}
