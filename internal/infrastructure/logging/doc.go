// Package logging provides structured logging for the driver process.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Append-only file output for unattended observatory hosts
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, or a file path
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("camera opened", "index", 0, "name", "ZWO ASI294MC Pro")
//	logger.Error("exposure failed", "error", err)
//
// Never log MQTT passwords, InfluxDB tokens or bearer tokens.
package logging
