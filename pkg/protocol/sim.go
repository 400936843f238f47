package protocol

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"sync"
	"time"
)

// ErrSimClosed is returned by Sim control methods after Close.
var ErrSimClosed = errors.New("protocol.sim_closed")

// SentMessage records one SendMessage call made against a Sim.
type SentMessage struct {
	To   string
	Text string
}

// Sim is a scripted in-memory protocol client. Tests drive it through the
// Emit methods; SimDialer wraps it in an automatic first-link script for
// running the service without the real wire protocol.
type Sim struct {
	mu       sync.Mutex
	events   chan Event
	closed   bool
	user     string
	sent     []SentMessage
	pairings []string
}

// NewSim creates an idle simulated client. Nothing happens until an Emit
// method is called.
func NewSim() *Sim {
	return &Sim{events: make(chan Event, 32)}
}

// Events returns the simulated event stream.
func (s *Sim) Events() <-chan Event {
	return s.events
}

// RequestPairingCode records the request and returns a code derived from the
// phone number, so repeated calls are deterministic.
func (s *Sim) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSimClosed
	}
	s.pairings = append(s.pairings, phone)
	sum := sha256.Sum256([]byte(phone))
	code := base32.StdEncoding.EncodeToString(sum[:])[:8]
	return code[:4] + "-" + code[4:], nil
}

// SendMessage records the outgoing message.
func (s *Sim) SendMessage(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSimClosed
	}
	s.sent = append(s.sent, SentMessage{To: to, Text: text})
	return nil
}

// UserID reports the identity set by EmitOpen.
func (s *Sim) UserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.user != ""
}

// Close ends the event stream. Safe to call multiple times.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// EmitArtifact emits a one-time linking code event.
func (s *Sim) EmitArtifact(code string) {
	s.emit(Event{Kind: EventArtifact, Artifact: code})
}

// EmitCredentials emits an updated credential blob snapshot.
func (s *Sim) EmitCredentials(blob []byte) {
	s.emit(Event{Kind: EventCredentials, Credentials: append([]byte(nil), blob...)})
}

// EmitOpen marks the connection authenticated as the given identity.
func (s *Sim) EmitOpen(user string) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.emit(Event{Kind: EventOpen})
}

// EmitClosed emits a close event with the given cause.
func (s *Sim) EmitClosed(info CloseInfo) {
	s.emit(Event{Kind: EventClosed, Close: info})
}

func (s *Sim) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		// Nobody draining a full buffer means the consumer is gone; drop.
	}
}

// Sent returns a copy of all messages sent through this client.
func (s *Sim) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// PairingRequests returns a copy of all phone numbers passed to
// RequestPairingCode.
func (s *Sim) PairingRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pairings...)
}

// SimConfig controls the SimDialer first-link script.
type SimConfig struct {
	ArtifactInterval time.Duration `env:"SIM_ARTIFACT_INTERVAL" envDefault:"20s"`
	ConfirmAfter     time.Duration `env:"SIM_CONFIRM_AFTER" envDefault:"45s"`
}

// SimDialer returns a Dialer producing scripted clients: with existing
// credentials the connection resumes silently and opens; without, it emits a
// fresh linking code every ArtifactInterval and confirms after ConfirmAfter.
func SimDialer(cfg SimConfig) Dialer {
	if cfg.ArtifactInterval <= 0 {
		cfg.ArtifactInterval = 20 * time.Second
	}
	if cfg.ConfirmAfter <= 0 {
		cfg.ConfirmAfter = 45 * time.Second
	}
	return func(ctx context.Context, creds []byte) (Client, error) {
		s := NewSim()
		go s.script(ctx, cfg, creds)
		return s, nil
	}
}

func (s *Sim) script(ctx context.Context, cfg SimConfig, creds []byte) {
	if len(creds) > 0 {
		s.EmitCredentials(creds)
		s.EmitOpen("sim:resumed-device")
		return
	}

	blob := make([]byte, 32)
	_, _ = rand.Read(blob)

	s.EmitArtifact(randomLinkCode())

	ticker := time.NewTicker(cfg.ArtifactInterval)
	defer ticker.Stop()
	confirm := time.NewTimer(cfg.ConfirmAfter)
	defer confirm.Stop()

	for {
		select {
		case <-ctx.Done():
			s.EmitClosed(CloseInfo{Code: CodeConnectionClosed, Reason: "dial context cancelled"})
			return
		case <-ticker.C:
			s.EmitArtifact(randomLinkCode())
		case <-confirm.C:
			s.EmitCredentials(blob)
			s.EmitOpen("sim:new-device")
			return
		}
	}
}

func randomLinkCode() string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	return "DLNK-" + base32.StdEncoding.EncodeToString(b)[:12]
}
