// Package logging provides structured logging with per-module log levels.
//
// Initialize once at startup, then take a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"bridge": "debug"},
//		Forward: "warn",
//	})
//	logger := logging.GetLogger("devices")
//	logger.Info("Capture devices enumerated", "count", 2)
//
// Every module logger fans out through a MultiHandler to:
//   - stdout (text or json) when a terminal, pipe or file is attached
//   - the systemd journal when journald is reachable, tagged
//     SYSLOG_IDENTIFIER=capturebridge
//   - an in-memory RingBuffer that backs the logs API and the log callback
//   - the ForwardSink installed with SetForwardSink, for records at or above
//     Config.Forward
//
// Levels live in slog.LevelVars, so SetLevels (called by the config
// watcher) takes effect on existing loggers without rebuilding handlers.
//
// Journal entries carry attributes as upper-cased fields:
//
//	journalctl -t capturebridge MODULE=bridge -p warning
//
// TOML form:
//
//	[logging]
//	level = "info"
//	format = "text"
//	forward = "warn"
//
//	[logging.modules]
//	bridge = "debug"
package logging
