package observability

import (
	"go.uber.org/zap"

	"forensicwatch/internal/stream"
)

// DiagnosticLogger writes stream diagnostics (malformed frames, transport
// errors) to a logger instead of the job's event log.
type DiagnosticLogger struct {
	L *zap.Logger
}

func (d DiagnosticLogger) LogDiagnostic(what string, err error) {
	d.L.Warn(what, zap.String("source", "stream"), zap.Error(err))
}

// LogNotifier records user-facing notifications in the log.
type LogNotifier struct {
	L *zap.Logger
}

func (n LogNotifier) Notify(note stream.Notification) {
	fields := []zap.Field{zap.String("description", note.Description)}
	if note.Severity == stream.SeverityDestructive {
		n.L.Error(note.Title, fields...)
		return
	}
	n.L.Info(note.Title, fields...)
}

// Notifiers fans a notification out to every non-nil notifier in order.
type Notifiers []stream.Notifier

func (ns Notifiers) Notify(note stream.Notification) {
	for _, n := range ns {
		if n != nil {
			n.Notify(note)
		}
	}
}
