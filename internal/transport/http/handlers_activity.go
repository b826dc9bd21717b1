package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"backtrail/internal/oplog"
	"backtrail/internal/transport/http/shared"
)

// ActivityFeed exposes the Redis-backed recent-activity feed when configured.
type ActivityFeed interface {
	Recent(ctx context.Context, module string, n int64) ([]oplog.Entry, error)
}

type activityHandler struct {
	feed   ActivityFeed
	logger *slog.Logger
}

func (h *activityHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")

	var limit int64 = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.feed.Recent(r.Context(), module, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read activity feed failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
