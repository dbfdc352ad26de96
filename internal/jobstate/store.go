// Package jobstate holds the local view of one analysis job: its stage table,
// event log, results and upload progress.
package jobstate

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"forensicwatch/internal/eventlog"
	"forensicwatch/internal/model"
)

// UnknownStageError is returned when an update targets a stage outside the
// store's fixed stage set. The update is dropped.
type UnknownStageError struct {
	Stage model.StageID
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", string(e.Stage))
}

// Store is the single owner of mutable job-view state.
//
// Mutations are expected to come from one logical thread (the stream client);
// the lock only makes snapshots safe for concurrent renderers.
type Store struct {
	mu sync.RWMutex

	order  []model.StageID
	stages map[model.StageID]model.StageRecord
	events *eventlog.Buffer

	jobID          model.JobID
	results        model.Results
	uploadProgress int

	changes chan struct{}
	logger  *zap.Logger
}

type settings struct {
	stages   []model.StageID
	capacity int
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*settings)

// WithStages sets the fixed stage set. Defaults to model.DefaultStages.
func WithStages(ids []model.StageID) Option {
	return func(s *settings) {
		s.stages = ids
	}
}

// WithEventCapacity sets the event log bound. Defaults to eventlog.DefaultCapacity.
func WithEventCapacity(n int) Option {
	return func(s *settings) {
		s.capacity = n
	}
}

// WithClock sets the timestamp source for events.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithLogger attaches a logger for dropped updates.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// New constructs an empty store with every stage pending.
func New(opts ...Option) *Store {
	cfg := settings{
		stages:   model.DefaultStages,
		capacity: eventlog.DefaultCapacity,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	order := make([]model.StageID, 0, len(cfg.stages))
	seen := make(map[model.StageID]bool, len(cfg.stages))
	for _, id := range cfg.stages {
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}

	s := &Store{
		order:   order,
		events:  eventlog.New(cfg.capacity, eventlog.WithClock(cfg.now)),
		changes: make(chan struct{}, 1),
		logger:  cfg.logger,
	}
	s.stages = s.pendingTable()
	return s
}

func (s *Store) pendingTable() map[model.StageID]model.StageRecord {
	t := make(map[model.StageID]model.StageRecord, len(s.order))
	for _, id := range s.order {
		t[id] = model.PendingStage()
	}
	return t
}

// SetStage merges u into the record for id. Unknown ids are rejected: the
// update is dropped and an error-level event records the discrepancy.
func (s *Store) SetStage(id model.StageID, u model.StageUpdate) error {
	s.mu.Lock()
	rec, ok := s.stages[id]
	if !ok {
		err := &UnknownStageError{Stage: id}
		s.events.Append(model.EventLogEntry{
			Level:   model.LevelError,
			Kind:    model.KindSystem,
			Stage:   id,
			Message: fmt.Sprintf("Dropped update for unknown stage %q", string(id)),
		})
		s.mu.Unlock()
		s.logger.Warn("Dropped stage update", zap.String("stage", string(id)), zap.Error(err))
		s.notify()
		return err
	}
	s.stages[id] = u.Apply(rec)
	s.mu.Unlock()
	s.notify()
	return nil
}

// AppendEvent records an event, most recent first, and returns the stored entry.
func (s *Store) AppendEvent(e model.EventLogEntry) model.EventLogEntry {
	s.mu.Lock()
	stored := s.events.Append(e)
	s.mu.Unlock()
	s.notify()
	return stored
}

// SetResults replaces the stored results payload.
func (s *Store) SetResults(r model.Results) {
	s.mu.Lock()
	if r == nil {
		s.results = nil
	} else {
		s.results = append(model.Results(nil), r...)
	}
	s.mu.Unlock()
	s.notify()
}

// SetUploadProgress records the pre-stream upload percentage, clamped to [0,100].
func (s *Store) SetUploadProgress(percent int) {
	percent = min(max(percent, 0), 100)
	s.mu.Lock()
	s.uploadProgress = percent
	s.mu.Unlock()
	s.notify()
}

// SetJobID records the job currently being observed.
func (s *Store) SetJobID(id model.JobID) {
	s.mu.Lock()
	s.jobID = id
	s.mu.Unlock()
	s.notify()
}

// Reset restores the idle view: every stage pending, no events, no results.
func (s *Store) Reset() {
	s.mu.Lock()
	s.stages = s.pendingTable()
	s.events.Clear()
	s.results = nil
	s.uploadProgress = 0
	s.jobID = ""
	s.mu.Unlock()
	s.notify()
}

// Changes signals after every mutation. Signals coalesce; receivers should
// read a fresh Snapshot each time.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
