package linker

import "errors"

var (
	// ErrEmptySessionID is returned when a session id is blank.
	ErrEmptySessionID = errors.New("linker.empty_session_id")

	// ErrSessionExists is returned by strict start when the id already has a
	// live session.
	ErrSessionExists = errors.New("linker.session_exists")

	// ErrSessionClosed is returned when an operation races a session's
	// teardown.
	ErrSessionClosed = errors.New("linker.session_closed")

	// ErrAlreadyLinked means the session authenticated before a linking
	// artifact was needed, so there is nothing to deliver.
	ErrAlreadyLinked = errors.New("linker.already_linked")

	// ErrInvalidPhone is returned when a pairing request carries a phone
	// number with too few or too many digits.
	ErrInvalidPhone = errors.New("linker.invalid_phone")

	// ErrLinkTimeout means no linking artifact arrived within the configured
	// wait. The underlying connection keeps going and may still link later.
	ErrLinkTimeout = errors.New("linker.link_timeout")

	// ErrClosedBeforeLink means the connection reached a terminal state while
	// a caller was still waiting for the linking artifact.
	ErrClosedBeforeLink = errors.New("linker.closed_before_link")

	// ErrProtocolFailure wraps errors from protocol client construction or
	// control calls.
	ErrProtocolFailure = errors.New("linker.protocol_failure")

	// ErrArtifactRender is returned when the linking code cannot be rendered
	// into a scannable image.
	ErrArtifactRender = errors.New("linker.artifact_render_failed")

	// ErrNoCredentials is returned when exporting an empty credential state.
	ErrNoCredentials = errors.New("linker.no_credentials")

	// ErrCredentialsNotFound is returned by stores when no record exists for
	// the session id.
	ErrCredentialsNotFound = errors.New("linker.credentials_not_found")

	// ErrManagerClosed is returned when starting sessions after Shutdown.
	ErrManagerClosed = errors.New("linker.manager_closed")
)
