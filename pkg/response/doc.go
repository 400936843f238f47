// Package response provides small helpers for writing JSON HTTP responses
// and mapping application errors to HTTP status codes.
package response
