package linker

import "github.com/dmitrymomot/devicelink/pkg/protocol"

// Outcome is the policy decision for a closed connection.
type Outcome int

const (
	// OutcomeRetry keeps credentials and reconnects with the in-memory
	// credential state.
	OutcomeRetry Outcome = iota + 1
	// OutcomeLoggedOut is terminal: the remote end invalidated the
	// credentials, so they are purged and the session is destroyed.
	OutcomeLoggedOut
	// OutcomeError is terminal: the session is destroyed but stored
	// credentials are kept for a future manual resumption attempt.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRetry:
		return "retry"
	case OutcomeLoggedOut:
		return "logged_out"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Classify maps a close cause to its policy outcome. Pure function; all side
// effects belong to the session controller.
//
// An explicit logout is the only cause that invalidates credentials. A
// malformed session state or a close with no status code at all has no valid
// classification and is terminal without a credential purge. Everything else,
// including restart-required and transient drops, is recoverable.
func Classify(info protocol.CloseInfo) Outcome {
	switch {
	case info.Code == protocol.CodeLoggedOut:
		return OutcomeLoggedOut
	case info.Code == protocol.CodeBadSession:
		return OutcomeError
	case info.Code == 0:
		return OutcomeError
	default:
		return OutcomeRetry
	}
}
