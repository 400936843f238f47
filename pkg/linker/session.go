package linker

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/devicelink/pkg/protocol"
)

// Status is the externally visible lifecycle state of a session.
type Status string

const (
	// StatusPending means a protocol client exists but no linking artifact
	// has been delivered yet.
	StatusPending Status = "pending"
	// StatusLinking means the artifact was delivered and the session awaits
	// confirmation from the user's device.
	StatusLinking Status = "linking"
	// StatusOpen means the connection is authenticated. Protocol messages may
	// only be sent in this state.
	StatusOpen Status = "open"
	// StatusReconnecting means the connection dropped recoverably and a new
	// attempt is scheduled.
	StatusReconnecting Status = "reconnecting"
	// StatusDisconnected is terminal: the session record is gone. Unknown
	// session ids also report this status.
	StatusDisconnected Status = "disconnected"
)

// StatusMessage renders a status as the human-readable line shown to users.
func StatusMessage(s Status) string {
	switch s {
	case StatusPending:
		return "initializing connection"
	case StatusLinking:
		return "waiting for device confirmation"
	case StatusOpen:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "not connected"
	}
}

// ArtifactKind discriminates the two linking artifact shapes.
type ArtifactKind string

const (
	// ArtifactImage is a rendered scannable code, delivered as a data URL.
	ArtifactImage ArtifactKind = "code_image"
	// ArtifactPairing is a short alphanumeric pairing code.
	ArtifactPairing ArtifactKind = "pairing_code"
)

// Artifact is the one-time payload a user presents to authorize the link.
type Artifact struct {
	Kind ArtifactKind `json:"kind"`
	Data string       `json:"data"`
}

// linkPromise delivers one linking artifact (or a failure) to at most one
// waiting caller. Resolution is one-shot; later resolve calls are no-ops.
type linkPromise struct {
	once     sync.Once
	done     chan struct{}
	artifact Artifact
	err      error
}

func newLinkPromise() *linkPromise {
	return &linkPromise{done: make(chan struct{})}
}

func (p *linkPromise) resolve(a Artifact, err error) bool {
	won := false
	p.once.Do(func() {
		p.artifact = a
		p.err = err
		close(p.done)
		won = true
	})
	return won
}

func (p *linkPromise) await(ctx context.Context) (Artifact, error) {
	select {
	case <-p.done:
		return p.artifact, p.err
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	}
}

func (p *linkPromise) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Record is one live session. The Registry owns the set of records; the
// session's controller goroutine owns the connection behind it.
type Record struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	status      Status
	client      protocol.Client
	clientReady chan struct{}
	readyClosed bool
	link        *linkPromise
	cancel      context.CancelFunc
}

func newRecord(id string) *Record {
	return &Record{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		status:      StatusPending,
		clientReady: make(chan struct{}),
		link:        newLinkPromise(),
	}
}

// Status reports the current lifecycle state.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Record) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// beginAttempt resets per-attempt state for a fresh connection. A pending
// link promise survives, so the original caller's wait carries across a quick
// retry; an error-resolved one (a previous open) is replaced because the new
// attempt may need to link again.
func (r *Record) beginAttempt() {
	r.mu.Lock()
	r.status = StatusPending
	r.client = nil
	r.clientReady = make(chan struct{})
	r.readyClosed = false
	if r.link.resolved() && r.link.err != nil {
		r.link = newLinkPromise()
	}
	r.mu.Unlock()
}

func (r *Record) setClient(c protocol.Client) {
	r.mu.Lock()
	r.client = c
	if !r.readyClosed {
		close(r.clientReady)
		r.readyClosed = true
	}
	r.mu.Unlock()
}

// abortAttempt releases clientReady waiters when no client will arrive.
func (r *Record) abortAttempt() {
	r.mu.Lock()
	if !r.readyClosed {
		close(r.clientReady)
		r.readyClosed = true
	}
	r.mu.Unlock()
}

// awaitClient blocks until the current attempt's protocol client is dialed.
func (r *Record) awaitClient(ctx context.Context) (protocol.Client, error) {
	r.mu.Lock()
	ready := r.clientReady
	r.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	c := r.client
	r.mu.Unlock()
	if c == nil {
		return nil, ErrSessionClosed
	}
	return c, nil
}

// waiter returns the promise a caller should await. A promise that already
// delivered its artifact is replaced with a fresh one, so a late caller waits
// for the client's next artifact emission instead of receiving a replay. A
// promise resolved with an error stays: already-linked and terminal outcomes
// apply to late callers too.
func (r *Record) waiter() *linkPromise {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.link.resolved() && r.link.err == nil {
		r.link = newLinkPromise()
	}
	return r.link
}

// resolveLink delivers the artifact to the current waiter. Reports whether
// this call won the one-shot resolution.
func (r *Record) resolveLink(a Artifact) bool {
	r.mu.Lock()
	p := r.link
	r.mu.Unlock()
	return p.resolve(a, nil)
}

// failLink fails the current waiter, if one is still pending.
func (r *Record) failLink(err error) {
	r.mu.Lock()
	p := r.link
	r.mu.Unlock()
	p.resolve(Artifact{}, err)
}
