package model

import (
	"encoding/json"
	"time"
)

// JobID identifies one analysis job on the processing server.
type JobID string

// StageID names one step of the server-side analysis pipeline.
type StageID string

const (
	StageOCR     StageID = "OCR"
	StageCNN     StageID = "CNN"
	StageELA     StageID = "ELA"
	StageBenford StageID = "Benford"
	StageHeatmap StageID = "Heatmap"
	StageReport  StageID = "Report"
)

// DefaultStages is the fixed, ordered pipeline the processing server runs.
var DefaultStages = []StageID{
	StageOCR,
	StageCNN,
	StageELA,
	StageBenford,
	StageHeatmap,
	StageReport,
}

// StageStatus is the lifecycle state of a stage as asserted by the server.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusProcessing StageStatus = "processing"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
)

// StageRecord is the local view of one stage.
type StageRecord struct {
	Status    StageStatus `json:"status"`
	Progress  int         `json:"progress"` // 0..100
	StartTime *time.Time  `json:"startTime,omitempty"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
}

// PendingStage returns the initial record every stage starts from.
func PendingStage() StageRecord {
	return StageRecord{Status: StatusPending}
}

// Duration returns EndTime-StartTime when both are set.
func (r StageRecord) Duration() (time.Duration, bool) {
	if r.StartTime == nil || r.EndTime == nil {
		return 0, false
	}
	return r.EndTime.Sub(*r.StartTime), true
}

// StageUpdate is a partial update merged into a StageRecord.
// Nil fields leave the existing value untouched.
type StageUpdate struct {
	Status    *StageStatus
	Progress  *int
	StartTime *time.Time
	EndTime   *time.Time
}

// Apply merges u into r and returns the result.
func (u StageUpdate) Apply(r StageRecord) StageRecord {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Progress != nil {
		r.Progress = *u.Progress
	}
	if u.StartTime != nil {
		t := *u.StartTime
		r.StartTime = &t
	}
	if u.EndTime != nil {
		t := *u.EndTime
		r.EndTime = &t
	}
	return r
}

// EventLevel is the severity of an event log entry.
type EventLevel string

const (
	LevelInfo    EventLevel = "info"
	LevelSuccess EventLevel = "success"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// EventKind tags the source of an event log entry.
type EventKind string

const (
	KindSystem EventKind = "system"
	KindStage  EventKind = "stage"
	KindResult EventKind = "result"
	KindError  EventKind = "error"
	KindInfo   EventKind = "info"
)

// EventLogEntry is one operator-facing notification about a job.
type EventLogEntry struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Level     EventLevel `json:"level"`
	Kind      EventKind  `json:"type,omitempty"`
	Stage     StageID    `json:"stage,omitempty"`
	Message   string     `json:"message"`
}

// Results is the analysis payload. It is never interpreted by the client.
type Results = json.RawMessage

// Ptr returns a pointer to v. Handy for building StageUpdates.
func Ptr[T any](v T) *T {
	return &v
}
