// Package logging provides structured logging for the TLS negotiation core.
//
// The Logger wraps log/slog with JSON or text output and helpers to attach
// server and connection identity to every record:
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	clog := logger.WithConn(connID).WithServer("a.example.net")
//	clog.Warn("certificate file changed on disk")
package logging
