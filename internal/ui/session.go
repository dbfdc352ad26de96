package ui

import (
	"context"
	"time"

	"forensicwatch/internal/jobstate"
	"forensicwatch/internal/model"
	"forensicwatch/internal/stream"
)

// Controller is the part of the stream client a renderer drives.
type Controller interface {
	Connect(ctx context.Context, jobID model.JobID) error
	Disconnect()
	State() stream.ConnectionState
	IsConnected() bool
}

// UploadFunc uploads the document and returns the job the server created.
type UploadFunc func(ctx context.Context, onProgress func(percent int)) (model.JobID, error)

// Session is everything a renderer observes and controls.
type Session struct {
	Store  *jobstate.Store
	Client Controller
	Bridge *Bridge
}

// Config describes what to watch.
type Config struct {
	JobID    model.JobID // ignored when Upload is set
	FileName string
	Upload   UploadFunc
	// Stay keeps the renderer running after the results arrive.
	Stay bool
	Now  func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Summary is how a watch ended.
type Summary struct {
	JobID     model.JobID
	Completed bool   // results received
	Failed    bool   // the server reported a processing error
	LastError string // message of the last processing error
	GaveUp    bool   // reconnect attempts ran out
	Err       error  // upload or connect failure
}

// observe records the effect of a bridge message on the summary. It reports
// whether the renderer should stop.
func (s *Summary) observe(msg any, stay bool) bool {
	switch m := msg.(type) {
	case stateMsg:
		if m.State == stream.StateGaveUp {
			s.GaveUp = true
			return true
		}
	case notifyMsg:
		if m.N.Severity == stream.SeverityDestructive && m.N.Title == "Processing Error" {
			s.Failed = true
			s.LastError = m.N.Description
		}
	case resultMsg:
		s.Completed = true
		return !stay
	}
	return false
}
