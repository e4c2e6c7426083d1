package sse

import (
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// writeTimeout bounds a single event write so a stalled connection is torn
// down instead of holding the client slot forever.
const writeTimeout = time.Minute

// Handler serves the event stream at GET /api/v1/events.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a Handler backed by manager.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// ServeHTTP streams events until the client goes away or the manager shuts down.
// The first frame is a "connected" event carrying the client id; the manager
// then replays the latest tick and any visible overlay.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}
	if h.manager.IsShutdown() {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream cannot flush", slog.String("error", err.Error()))
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect()
	if err != nil {
		h.logger.Error("event client registration failed", slog.String("error", err.Error()))
		http.Error(w, "could not open event stream", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	hello := map[string]string{"client_id": client.ID}
	if err := h.write(w, rc, "connected", 0, hello); err != nil {
		log.Debug("event client gone before hello", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case evt, ok := <-client.Events:
			if !ok {
				return
			}
			if err := h.write(w, rc, string(evt.Type), evt.Seq, evt); err != nil {
				log.Debug("event client gone", slog.String("error", err.Error()))
				return
			}
		case <-client.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// write emits one SSE frame. seq 0 omits the id line.
func (h *Handler) write(w io.Writer, rc *http.ResponseController, name string, seq uint64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}

	if seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, body); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}

	// Not every ResponseWriter supports deadlines; httptest's recorder does not.
	_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}
