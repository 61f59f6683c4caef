// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Loggers travel through the call chain inside a
// context.Context (see WithLogger and FromContext) so that request-scoped attributes
// such as the request ID reach the persistence layer.
package logger
