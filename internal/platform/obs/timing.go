package obs

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Time logs the duration of an operation and its error, if any:
//
//	defer obs.Time(ctx, "assembler.CloseBatch")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID := middleware.GetReqID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		attrs := []any{"op", name, "dur_ms", dur.Milliseconds()}
		if reqID != "" {
			attrs = append(attrs, "req_id", reqID)
		}

		if errp != nil && *errp != nil {
			slog.WarnContext(ctx, "operation failed", append(attrs, "err", *errp)...)
			return
		}
		slog.DebugContext(ctx, "operation done", attrs...)
	}
}
