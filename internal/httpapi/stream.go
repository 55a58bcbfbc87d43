package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/roach88/domainreg/internal/events"
)

// streamEvents relays committed events as server-sent events until the
// client disconnects. Delivery is best effort: a slow client misses events
// and should catch up from GET /v1/events using the last seq it saw.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming unsupported")
		return
	}

	ctx := r.Context()
	sub := h.broker.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			env, err := events.NewEnvelope(ev)
			if err != nil {
				h.logger.ErrorContext(ctx, "encode event", "seq", ev.Seq, "error", err)
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				h.logger.ErrorContext(ctx, "encode event", "seq", ev.Seq, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", env.Seq, env.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
