package jobstate

import (
	"forensicwatch/internal/estimate"
	"forensicwatch/internal/model"
)

// StageView pairs a stage id with its record, in pipeline order.
type StageView struct {
	ID model.StageID
	model.StageRecord
}

// View is an immutable snapshot of the whole job view.
type View struct {
	JobID          model.JobID
	Stages         []StageView
	Events         []model.EventLogEntry // most recent first
	Results        model.Results         // nil until the result arrives
	UploadProgress int
	Remaining      estimate.Estimate
}

// HasResults reports whether a results payload has been received.
func (v View) HasResults() bool {
	return v.Results != nil
}

// JobID returns the job currently being observed ("" when idle).
func (s *Store) JobID() model.JobID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobID
}

// StageIDs returns the fixed stage set in pipeline order.
func (s *Store) StageIDs() []model.StageID {
	return append([]model.StageID(nil), s.order...)
}

// Stage returns the record for id.
func (s *Store) Stage(id model.StageID) (model.StageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.stages[id]
	return r, ok
}

// Stages returns the stage table in pipeline order.
func (s *Store) Stages() []StageView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stagesLocked()
}

func (s *Store) stagesLocked() []StageView {
	out := make([]StageView, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, StageView{ID: id, StageRecord: s.stages[id]})
	}
	return out
}

// Events returns the event log, most recent first.
func (s *Store) Events() []model.EventLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Snapshot()
}

// Results returns a copy of the last results payload, or nil.
func (s *Store) Results() model.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.results == nil {
		return nil
	}
	return append(model.Results(nil), s.results...)
}

// UploadProgress returns the pre-stream upload percentage.
func (s *Store) UploadProgress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploadProgress
}

// Remaining recomputes the remaining-time estimate from the current table.
func (s *Store) Remaining() estimate.Estimate {
	return estimate.Remaining(records(s.Stages()))
}

// Snapshot returns a consistent copy of the whole view.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	stages := s.stagesLocked()
	v := View{
		JobID:          s.jobID,
		Stages:         stages,
		Events:         s.events.Snapshot(),
		UploadProgress: s.uploadProgress,
	}
	if s.results != nil {
		v.Results = append(model.Results(nil), s.results...)
	}
	s.mu.RUnlock()

	v.Remaining = estimate.Remaining(records(stages))
	return v
}

func records(views []StageView) []model.StageRecord {
	out := make([]model.StageRecord, len(views))
	for i, v := range views {
		out[i] = v.StageRecord
	}
	return out
}
