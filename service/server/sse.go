package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/tipjar/service/metrics"
	"github.com/brojonat/tipjar/service/nats"
)

// EventSource streams tip jar events. *nats.Subscriber implements it.
type EventSource interface {
	Stream(ctx context.Context, address string, replay bool) (<-chan *nats.Event, error)
}

const sseKeepalive = 10 * time.Second

// handleStreamEvents streams confirmed tips and withdrawals for this tip
// jar as Server-Sent Events.
// GET /api/v1/stream/events?replay=true
func handleStreamEvents(source EventSource, address string, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		events, err := source.Stream(r.Context(), address, r.URL.Query().Get("replay") == "true")
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to subscribe to events",
				"tipjar", address,
				"error", err,
			)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if m != nil {
			m.RecordSSEConnectionChange(address, 1)
			defer m.RecordSSEConnectionChange(address, -1)
		}
		logger.DebugContext(r.Context(), "SSE client connected",
			"tipjar", address,
			"remote_addr", r.RemoteAddr,
		)

		fmt.Fprintf(w, "event: connected\ndata: {\"tipjar\":%q}\n\n", address)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: tipjar\ndata: %s\n\n", event.ID, data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent(address, string(event.Kind))
				}

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"tipjar", address,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
