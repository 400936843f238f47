// Package pg bootstraps the PostgreSQL layer: a pgx connection pool with
// connect retries, goose schema migrations routed through slog, and a
// readiness probe for the health endpoint.
//
// Configuration comes from environment variables via the Config struct; see
// its field tags for names and defaults.
package pg
