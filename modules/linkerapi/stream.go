package linkerapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/devicelink/pkg/fanout"
	"github.com/dmitrymomot/devicelink/pkg/response"
)

const streamKeepalive = 30 * time.Second

type streamPayload struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// handleStream joins the session's event channel and forwards its log and
// status events as server-sent events until the client disconnects. A
// keepalive comment keeps idle connections from being reaped by proxies.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, response.ErrInternalServerError)
		return
	}

	sub, err := s.bus.Subscribe(r.Context(), id)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	defer func() { _ = sub.Close() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Late joiners get the current status immediately instead of waiting for
	// the next transition.
	_, msg := s.manager.Status(id)
	writeEvent(w, fanout.Status(msg))
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev fanout.Event) {
	data, err := json.Marshal(streamPayload{Message: ev.Message, At: ev.At})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
}
