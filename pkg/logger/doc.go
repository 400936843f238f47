// Package logger builds configured slog.Logger instances for the service.
//
// It wraps the standard library structured logger with a small option set:
// output format (json/text), level, static attributes, and environment
// presets that pick sane defaults for development and production.
//
// Basic usage:
//
//	log := logger.New(
//		logger.WithEnvironment("production", "devicelink"),
//	)
//	logger.SetAsDefault(log)
package logger
