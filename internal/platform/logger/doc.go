// Package logger provides structured logging functionality for the application.
//
// It uses the standard library log/slog package with a JSON handler, carries
// request-scoped loggers through context.Context, and offers a capture handler
// for asserting on log output in tests.
package logger
