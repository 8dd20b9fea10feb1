// Package logger provides structured logging capabilities.
//
// The logger package builds the application's zap logger from the logging
// section of the configuration. Logs are written to stderr so they never
// interleave with the MCP stdio stream.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("dataset loaded", zap.String("file", name))
package logger
