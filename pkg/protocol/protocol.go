package protocol

import "context"

// EventKind discriminates the events a Client emits.
type EventKind int

const (
	// EventArtifact carries a one-time linking code the user presents on
	// their device. Clients may re-emit a fresh code while unconfirmed.
	EventArtifact EventKind = iota + 1
	// EventCredentials carries an updated snapshot of the opaque credential
	// blob. The receiver must persist it verbatim.
	EventCredentials
	// EventOpen signals that the connection is authenticated.
	EventOpen
	// EventClosed signals that the connection closed; Close describes why.
	EventClosed
)

// Event is one item of a Client's event stream. Exactly one payload field is
// set, matching Kind.
type Event struct {
	Kind        EventKind
	Artifact    string
	Credentials []byte
	Close       CloseInfo
}

// Client is one live connection to the remote service. Events are delivered
// in arrival order on a single channel; the stream ends after EventClosed.
type Client interface {
	// Events returns the connection's event stream.
	Events() <-chan Event

	// RequestPairingCode asks the remote service for a short numeric linking
	// code bound to the given phone number (digits only).
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	// SendMessage delivers a text message to the given identity. Only valid
	// once the connection is open.
	SendMessage(ctx context.Context, to, text string) error

	// UserID reports the authenticated identity, if any.
	UserID() (string, bool)

	// Close tears the connection down and releases the event stream.
	Close() error
}

// Dialer constructs a Client for one connection attempt. creds is the opaque
// credential blob from a previous session, or nil for first-time linking.
type Dialer func(ctx context.Context, creds []byte) (Client, error)
