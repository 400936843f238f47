// Package fanout delivers per-session log and status events to any number of
// live observers, typically SSE stream handlers.
//
// A Bus is keyed by session id: publishing to a session reaches only that
// session's subscribers, and a session with no subscribers costs nothing.
// Slow subscribers have events dropped rather than blocking the publisher.
//
// Two implementations ship with the package: MemoryBus for single-process
// deployments and RedisBus for fanning out across replicas via Redis Pub/Sub.
// LogHandler bridges slog records into the bus so a session's structured log
// lines reach its stream observers.
package fanout
