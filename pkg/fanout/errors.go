package fanout

import "errors"

var (
	// ErrBusClosed is returned when publishing to or subscribing on a closed bus.
	ErrBusClosed = errors.New("fanout.bus_closed")

	// ErrEmptySessionID is returned when the session id is blank.
	ErrEmptySessionID = errors.New("fanout.empty_session_id")
)
