package stream

import "time"

// Backoff is a capped exponential reconnect policy.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff waits 1s, 2s, 4s, 8s, 16s and then gives up.
var DefaultBackoff = Backoff{
	Base:        time.Second,
	Max:         30 * time.Second,
	MaxAttempts: 5,
}

// Delay returns min(Base*2^attempt, Max).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

func (b Backoff) withDefaults() Backoff {
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.MaxAttempts < 0 {
		b.MaxAttempts = 0
	}
	return b
}
