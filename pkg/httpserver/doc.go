// Package httpserver wraps net/http.Server with option-based configuration,
// OS-signal aware graceful shutdown, and start/stop hooks for logging.
package httpserver
