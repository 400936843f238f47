// Package redis connects to a Redis server with retry logic and exposes a
// readiness probe for the health endpoint. The service uses Redis for
// cross-replica event fanout; this package only owns the connection.
package redis
