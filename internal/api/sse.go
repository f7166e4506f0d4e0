package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deckhand-ai/deckhand/internal/events"
)

// handleSSE streams pipeline events to the client. An optional ?deck= query
// parameter narrows the stream to one generation.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	if s.bus == nil {
		respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	deckFilter := r.URL.Query().Get("deck")
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	s.logger.Info("sse client connected", "remote_addr", r.RemoteAddr, "deck_filter", deckFilter)
	s.writeSSE(w, flusher, "connected", map[string]string{"status": "connected"})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sse client disconnected", "remote_addr", r.RemoteAddr)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if deckFilter != "" && event.DeckID() != deckFilter {
				continue
			}
			s.writeSSE(w, flusher, event.EventType(), eventPayload(event))
		}
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("sse payload marshal failed", "error", err.Error())
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// eventPayload wraps an event with its envelope fields. Typed events marshal
// their own fields; the envelope adds what the interface guarantees.
func eventPayload(event events.Event) map[string]any {
	return map[string]any{
		"type":      event.EventType(),
		"deck_id":   event.DeckID(),
		"timestamp": event.Timestamp(),
		"event":     event,
	}
}
