package protocol

import "fmt"

// Close reason codes reported by the remote service. The numeric values
// mirror the wire protocol's status codes.
const (
	// CodeLoggedOut means the remote end invalidated the credentials (the
	// user unlinked the device).
	CodeLoggedOut = 401
	// CodeConnectionLost is a transient network-level drop.
	CodeConnectionLost = 408
	// CodeConnectionClosed is a server-initiated transient close.
	CodeConnectionClosed = 428
	// CodeConnectionReplaced means another connection took over this session.
	CodeConnectionReplaced = 440
	// CodeBadSession means the client's session state is malformed.
	CodeBadSession = 500
	// CodeRestartRequired means the client must rebuild its internal state;
	// credentials remain valid.
	CodeRestartRequired = 515
)

// CloseInfo describes why a connection closed.
type CloseInfo struct {
	Code   int    // protocol status code, zero when unknown
	Reason string // free-text description from the remote end
	Err    error  // underlying error, if the close was caused by one
}

// String renders the close cause for logging.
func (c CloseInfo) String() string {
	switch {
	case c.Reason != "" && c.Code != 0:
		return fmt.Sprintf("%s (code %d)", c.Reason, c.Code)
	case c.Reason != "":
		return c.Reason
	case c.Err != nil:
		return c.Err.Error()
	default:
		return fmt.Sprintf("code %d", c.Code)
	}
}
