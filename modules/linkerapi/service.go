// Package linkerapi exposes the session lifecycle manager over HTTP: session
// start endpoints returning the linking artifact, a status poll, and a
// server-sent event stream of per-session log and status events.
package linkerapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/devicelink/pkg/fanout"
	"github.com/dmitrymomot/devicelink/pkg/linker"
)

// Service bundles the HTTP handlers around the lifecycle manager and the
// per-session event bus.
type Service struct {
	manager *linker.Manager
	bus     fanout.Bus
	log     *slog.Logger
}

// NewService wires the handlers. A nil log falls back to slog.Default.
func NewService(manager *linker.Manager, bus fanout.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{manager: manager, bus: bus, log: log}
}

// Handle returns the module's router, meant to be mounted under /api/sessions.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/start/code", s.handleStartCode)
	r.Post("/start/pair", s.handleStartPair)
	r.Get("/status/{sessionID}", s.handleStatus)
	r.Get("/stream/{sessionID}", s.handleStream)
	return r
}
