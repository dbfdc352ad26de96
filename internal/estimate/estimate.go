// Package estimate projects the remaining processing time of a job from its
// stage table.
package estimate

import (
	"fmt"
	"math"
	"time"

	"forensicwatch/internal/model"
)

// Estimate is the projected time until the job finishes.
// Known is false when no stage has completed with both timestamps yet.
type Estimate struct {
	Known   bool
	Seconds int64
}

// Unknown is the estimate returned before any stage has a measured duration.
var Unknown = Estimate{}

// Duration returns the estimate as a time.Duration (0 when unknown).
func (e Estimate) Duration() time.Duration {
	return time.Duration(e.Seconds) * time.Second
}

// Done reports whether no time remains.
func (e Estimate) Done() bool {
	return e.Known && e.Seconds == 0
}

func (e Estimate) String() string {
	switch {
	case !e.Known:
		return "unknown"
	case e.Seconds == 0:
		return "done"
	default:
		return "~" + e.Duration().String()
	}
}

// Remaining assumes every stage takes the mean duration of the stages that
// have completed so far.
func Remaining(stages []model.StageRecord) Estimate {
	var (
		completed int
		totalMs   float64
	)
	for _, s := range stages {
		if s.Status != model.StatusCompleted {
			continue
		}
		d, ok := s.Duration()
		if !ok {
			continue
		}
		completed++
		totalMs += float64(d.Milliseconds())
	}
	if completed == 0 {
		return Unknown
	}

	avgMs := totalMs / float64(completed)
	remaining := len(stages) - completed
	secs := math.Round(avgMs * float64(remaining) / 1000)
	if secs < 0 {
		// Clock skew between server timestamps.
		secs = 0
	}
	return Estimate{Known: true, Seconds: int64(secs)}
}

// Format renders e for a status line, e.g. "ETA ~1m5s".
func Format(e Estimate) string {
	if !e.Known {
		return "ETA unknown"
	}
	if e.Seconds == 0 {
		return "no time remaining"
	}
	return fmt.Sprintf("ETA %s", e)
}
