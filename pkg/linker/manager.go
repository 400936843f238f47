package linker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicelink/pkg/fanout"
	"github.com/dmitrymomot/devicelink/pkg/protocol"
	"github.com/dmitrymomot/devicelink/pkg/qrcode"
)

// Config tunes session lifecycle behavior.
type Config struct {
	// LinkTimeout bounds how long a start request waits for its linking
	// artifact. The underlying connection keeps going after a timeout.
	LinkTimeout time.Duration `env:"LINK_TIMEOUT" envDefault:"60s"`
	// RetryDelay is the pause before reconnecting after a recoverable close.
	RetryDelay time.Duration `env:"LINK_RETRY_DELAY" envDefault:"2s"`
	// QRSize is the rendered code image size in pixels.
	QRSize int `env:"LINK_QR_SIZE" envDefault:"256"`
	// WelcomeDelay spaces the two welcome messages apart.
	WelcomeDelay time.Duration `env:"LINK_WELCOME_DELAY" envDefault:"1s"`
}

func (c Config) withDefaults() Config {
	if c.LinkTimeout <= 0 {
		c.LinkTimeout = 60 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.QRSize <= 0 {
		c.QRSize = qrcode.DefaultSize
	}
	if c.WelcomeDelay <= 0 {
		c.WelcomeDelay = time.Second
	}
	return c
}

// Manager starts, resumes and supervises device-linking sessions. All methods
// are safe for concurrent use.
type Manager struct {
	cfg      Config
	registry *Registry
	store    Store
	bus      fanout.Bus
	dial     protocol.Dialer
	log      *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithConfig overrides the default lifecycle tuning. Zero fields keep their
// defaults.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithLogger sets the logger session controllers derive theirs from.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager wires the lifecycle manager to its collaborators: the durable
// credential store, the per-session event bus, and the protocol dialer.
func NewManager(store Store, bus fanout.Bus, dial protocol.Dialer, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		registry:   NewRegistry(),
		store:      store,
		bus:        bus,
		dial:       dial,
		log:        slog.Default(),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cfg = m.cfg.withDefaults()
	return m
}

// StartWithCode starts a fresh session and blocks until its first linking
// code arrives, returned rendered as a scannable image data URL. On timeout
// the session keeps running and remains observable via Status and the event
// stream.
func (m *Manager) StartWithCode(ctx context.Context) (string, Artifact, error) {
	id := uuid.NewString()
	rec, err := m.start(id, false)
	if err != nil {
		return "", Artifact{}, err
	}

	art, err := m.awaitArtifact(ctx, rec)
	if err != nil {
		return id, Artifact{}, err
	}

	img, err := qrcode.DataURL(art.Data, m.cfg.QRSize)
	if err != nil {
		return id, Artifact{}, errors.Join(ErrArtifactRender, err)
	}
	return id, Artifact{Kind: ArtifactImage, Data: img}, nil
}

// StartWithPairing starts a session linked by a numeric pairing code instead
// of a scannable image. The phone number is normalized to bare digits before
// being forwarded to the protocol client. A caller-supplied id must not
// collide with a live session; an empty id is generated.
func (m *Manager) StartWithPairing(ctx context.Context, id, phone string) (string, string, error) {
	digits, err := NormalizePhone(phone)
	if err != nil {
		return "", "", err
	}

	strict := id != ""
	if id == "" {
		id = uuid.NewString()
	}
	rec, err := m.start(id, strict)
	if err != nil {
		return "", "", err
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.LinkTimeout)
	defer cancel()

	client, err := rec.awaitClient(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return id, "", ErrLinkTimeout
		}
		return id, "", err
	}
	if rec.Status() == StatusOpen {
		return id, "", ErrAlreadyLinked
	}

	code, err := client.RequestPairingCode(ctx, digits)
	if err != nil {
		return id, "", errors.Join(ErrProtocolFailure, err)
	}
	m.publishStatus(ctx, id, "pairing code requested")
	return id, code, nil
}

// Status reports a session's lifecycle state with its user-facing message.
// Unknown ids report disconnected rather than an error.
func (m *Manager) Status(id string) (Status, string) {
	rec, ok := m.registry.Get(id)
	if !ok {
		return StatusDisconnected, StatusMessage(StatusDisconnected)
	}
	s := rec.Status()
	return s, StatusMessage(s)
}

// Sessions reports how many sessions are currently live.
func (m *Manager) Sessions() int {
	return m.registry.Count()
}

// Shutdown cancels every session controller and waits for them to drain,
// bounded by ctx. Live connections close; credential records stay in the
// store so sessions resume on the next start.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.baseCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) start(id string, strict bool) (*Record, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.mu.Unlock()

	if strict {
		rec, err := m.registry.StrictStart(id)
		if err != nil {
			return nil, err
		}
		m.launch(rec)
		return rec, nil
	}

	rec, created, err := m.registry.StartOrResume(id)
	if err != nil {
		return nil, err
	}
	if created {
		m.launch(rec)
	}
	return rec, nil
}

func (m *Manager) launch(rec *Record) {
	ctx, cancel := context.WithCancel(m.baseCtx)
	rec.mu.Lock()
	rec.cancel = cancel
	rec.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.run(ctx, rec)
	}()
}

func (m *Manager) awaitArtifact(ctx context.Context, rec *Record) (Artifact, error) {
	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.LinkTimeout)
	defer cancel()

	art, err := rec.waiter().await(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Artifact{}, ErrLinkTimeout
		}
		return Artifact{}, err
	}
	return art, nil
}

// NormalizePhone strips formatting from a phone number, keeping digits only.
func NormalizePhone(phone string) (string, error) {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) < 7 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return string(digits), nil
}
