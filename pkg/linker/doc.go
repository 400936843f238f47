// Package linker owns the device-linking session lifecycle: one long-lived
// authenticated protocol connection per session id, driven by the remote
// client's event stream.
//
// The Manager is the entry point. Starting a session dials a protocol client
// seeded with any persisted credentials, then hands the caller the one-time
// linking artifact (a scannable code image or a numeric pairing code). A
// per-session controller goroutine consumes the client's events: it persists
// every credential update, promotes the session through pending, linking and
// open, classifies disconnects into retry or terminal outcomes, and publishes
// log and status events to the session's fanout channel.
//
// Sessions are independent. Each controller serializes its own session's
// events; the Registry is the only shared structure and is the single source
// of truth for which sessions are live.
package linker
