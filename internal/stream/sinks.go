package stream

import "forensicwatch/internal/model"

// Sink is the slice of the job state store the client mutates. The client
// never reads job state back.
type Sink interface {
	SetStage(id model.StageID, u model.StageUpdate) error
	AppendEvent(e model.EventLogEntry) model.EventLogEntry
	SetResults(r model.Results)
}

// Severity classifies a user-facing notification.
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Notification is a transient, user-facing alert.
type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

// Notifier surfaces notifications to the user. Fire and forget.
type Notifier interface {
	Notify(n Notification)
}

// DiagnosticSink receives transport noise that does not belong in the job's
// event log: malformed frames and low-level connection errors.
type DiagnosticSink interface {
	LogDiagnostic(what string, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

type nopDiagnostics struct{}

func (nopDiagnostics) LogDiagnostic(string, error) {}
