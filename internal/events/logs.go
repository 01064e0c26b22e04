package events

import (
	"time"

	"github.com/smazurov/capturebridge/internal/logging"
)

// FromLogEntry converts a buffered log entry to its event form.
func FromLogEntry(entry logging.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
