// Package mongo manages the MongoDB connection used by the durable credential
// store: environment-driven configuration, connect retries for transient
// Atlas failures, and a readiness probe for the health endpoint.
package mongo
