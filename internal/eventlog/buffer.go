// Package eventlog keeps the bounded, most-recent-first trail of
// human-readable notifications about a job.
package eventlog

import (
	"time"

	"github.com/google/uuid"

	"forensicwatch/internal/model"
)

// DefaultCapacity is the number of entries retained per job view.
const DefaultCapacity = 100

// Buffer is a fixed-size ring of event log entries. The oldest entry is
// evicted once the ring is full.
//
// Buffer is not safe for concurrent use; the owning store serializes access.
type Buffer struct {
	entries []model.EventLogEntry
	head    int // index of the next write
	size    int
	now     func() time.Time
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock overrides the timestamp source for entries without one.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns an empty buffer holding at most capacity entries.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int, opts ...Option) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		entries: make([]model.EventLogEntry, capacity),
		now:     time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Append stores e as the most recent entry, assigning an ID and timestamp
// when absent, and returns the stored entry.
func (b *Buffer) Append(e model.EventLogEntry) model.EventLogEntry {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}
	if e.Level == "" {
		e.Level = model.LevelInfo
	}

	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
	if b.size < len(b.entries) {
		b.size++
	}
	return e
}

// Snapshot returns a copy of the retained entries, most recent first.
func (b *Buffer) Snapshot() []model.EventLogEntry {
	out := make([]model.EventLogEntry, 0, b.size)
	idx := b.head
	for i := 0; i < b.size; i++ {
		idx = (idx - 1 + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// Len reports the number of retained entries.
func (b *Buffer) Len() int {
	return b.size
}

// Cap reports the maximum number of retained entries.
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	clear(b.entries)
	b.head = 0
	b.size = 0
}

// newID returns a time-ordered UUID so IDs sort in append order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
