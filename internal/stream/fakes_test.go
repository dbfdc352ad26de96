package stream

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// manualClock records timers and only fires them when a test asks.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *manualClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.d
	}
	return out
}

func (c *manualClock) stopped(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i].stopped
}

// fire runs timer i unless it was stopped or already fired.
func (c *manualClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	if t.stopped || t.fired {
		c.mu.Unlock()
		return
	}
	t.fired = true
	c.mu.Unlock()
	t.f()
}

// forceFire runs timer i even if it was stopped, the way a racing
// time.AfterFunc callback can.
func (c *manualClock) forceFire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	t.fired = true
	c.mu.Unlock()
	t.f()
}

// fakeDialer hands out whatever next returns for the n-th dial.
type fakeDialer struct {
	mu   sync.Mutex
	urls []string
	next func(n int) (Conn, error)
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	n := len(d.urls)
	d.urls = append(d.urls, url)
	next := d.next
	d.mu.Unlock()
	return next(n)
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

// fakeConn delivers frames pushed by the test. Frames are unbuffered so a
// send returns only once the client has picked the frame up.
type fakeConn struct {
	frames chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) send(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.frames <- []byte(frame):
	case <-time.After(2 * time.Second):
		t.Fatalf("frame not consumed: %s", frame)
	}
}

func (c *fakeConn) fail(err error) {
	c.errs <- err
}

type notificationRecorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *notificationRecorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

func (r *notificationRecorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

type diagnosticRecorder struct {
	mu    sync.Mutex
	whats []string
}

func (r *diagnosticRecorder) LogDiagnostic(what string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.whats = append(r.whats, what)
}

func (r *diagnosticRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.whats...)
}
