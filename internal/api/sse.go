package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/notify"
)

// streamSearch streams lifecycle events for one search over SSE until the
// client disconnects or the publisher shuts down.
func (s *Server) streamSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "search_id")
	sub := s.publisher.Join(searchID)
	defer s.publisher.Leave(sub)
	s.streamEvents(w, r, sub)
}

// streamBroadcast streams events for every search in the process.
func (s *Server) streamBroadcast(w http.ResponseWriter, r *http.Request) {
	sub := s.publisher.JoinBroadcast()
	defer s.publisher.Leave(sub)
	s.streamEvents(w, r, sub)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, sub *notify.Subscription) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C:
			if !open {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				s.logger.Debug("SSE write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt notify.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
	return err
}
