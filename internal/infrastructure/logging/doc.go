// Package logging provides structured logging for the radio gateway.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development
//   - Coloured console output via tint for interactive use
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, console
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("frame received", "bytes", 32)
//	logger.Debug("frame rejected", "reason", framing.Reason(err))
//
// # Security
//
// Never log the LoRa key or decrypted payloads above debug level.
package logging
