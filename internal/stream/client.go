// Package stream maintains the live event stream for one analysis job and
// folds its messages into the job state store.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"forensicwatch/internal/model"
	"forensicwatch/internal/protocol"
)

// Client owns the connection for one job at a time and reconnects with
// capped exponential backoff when the stream drops.
//
// Every reaction (open, frame, error, close, timer) runs under mu, so the
// sink sees one logical thread of mutations in transport order. Each
// connection attempt gets a generation number; callbacks from an older
// generation are ignored.
type Client struct {
	sink        Sink
	base        *url.URL
	dialer      Dialer
	clock       Clock
	backoff     Backoff
	notifier    Notifier
	diagnostics DiagnosticSink
	logger      *zap.Logger
	onResult    func(model.JobID, model.Results)
	onState     func(ConnectionState)

	mu         sync.Mutex
	ctx        context.Context
	state      ConnectionState
	jobID      model.JobID
	attempts   int
	gen        uint64
	conn       Conn
	timer      Timer
	cancelDial context.CancelFunc
	done       chan struct{}
	effects    []func()
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the processing server address (http, https, ws or wss).
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) {
		c.base = u
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithClock replaces the timer source used for reconnects.
func WithClock(clk Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithBackoff sets the reconnect policy.
func WithBackoff(b Backoff) Option {
	return func(c *Client) {
		c.backoff = b.withDefaults()
	}
}

// WithNotifier sets the user-facing notification sink.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithDiagnostics sets the sink for malformed frames and transport errors.
func WithDiagnostics(d DiagnosticSink) Option {
	return func(c *Client) {
		c.diagnostics = d
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithResultHook is called once per result frame, after the store is updated.
func WithResultHook(fn func(model.JobID, model.Results)) Option {
	return func(c *Client) {
		c.onResult = fn
	}
}

// WithStateHook is called after every connection state change.
func WithStateHook(fn func(ConnectionState)) Option {
	return func(c *Client) {
		c.onState = fn
	}
}

// New constructs an idle client that applies stream messages to sink.
func New(sink Sink, opts ...Option) *Client {
	c := &Client{
		sink:        sink,
		dialer:      NewWebsocketDialer(nil),
		clock:       realClock{},
		backoff:     DefaultBackoff,
		notifier:    nopNotifier{},
		diagnostics: nopDiagnostics{},
		logger:      zap.NewNop(),
		ctx:         context.Background(),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect starts observing jobID. It is a no-op while a connection for the
// same job is open or being established. Observing a different job tears
// the current connection down first. An explicit Connect also restarts the
// reconnect budget, so it is how callers resume after the client gave up.
func (c *Client) Connect(ctx context.Context, jobID model.JobID) error {
	if jobID == "" {
		return errors.New("job id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.unlock()

	if c.jobID == jobID && (c.state == StateOpen || c.state == StateConnecting) {
		return nil
	}
	switch {
	case c.jobID != jobID:
		c.teardownLocked()
		if c.jobID != "" {
			// Whoever waits on the previous job sees it stop.
			c.closeDoneLocked()
			c.done = make(chan struct{})
		}
		c.logger.Debug("Observing job", zap.String("job_id", string(jobID)))
	case c.state.Terminal():
		c.resetDoneLocked()
	}

	c.ctx = ctx
	c.jobID = jobID
	c.attempts = 0
	c.connectLocked()
	return nil
}

// Disconnect cancels any pending reconnect and closes the live connection.
// It is safe to call in any state and never triggers a reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.unlock()

	c.teardownLocked()
	if c.jobID != "" || c.state != StateIdle {
		c.setStateLocked(StateClosed)
	}
	c.closeDoneLocked()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the stream is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// Attempts returns the number of reconnects scheduled since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// JobID returns the job being observed.
func (c *Client) JobID() model.JobID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// Done is closed once the client stops for the current job, either because
// the caller disconnected, reconnect attempts ran out, or Connect moved on
// to another job. Each job gets its own channel.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// connectLocked starts a new connection generation.
func (c *Client) connectLocked() {
	c.stopTimerLocked()
	c.gen++
	gen := c.gen

	dialCtx, cancel := context.WithCancel(c.ctx)
	c.cancelDial = cancel
	target := BuildURL(c.base, c.jobID)
	c.setStateLocked(StateConnecting)
	c.logger.Debug("Connecting", zap.String("url", target), zap.Int("attempt", c.attempts))

	go c.run(dialCtx, gen, target)
}

func (c *Client) run(ctx context.Context, gen uint64, target string) {
	conn, err := c.dialer.Dial(ctx, target)
	if err != nil {
		c.transportError(gen, err)
		c.transportClosed(gen)
		return
	}
	if !c.opened(gen, conn) {
		_ = conn.Close()
		return
	}
	// Reads do not observe ctx, so closing the conn is what unblocks them.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			if !isCleanClose(err) {
				c.transportError(gen, err)
			}
			c.transportClosed(gen)
			return
		}
		c.received(gen, frame)
	}
}

func (c *Client) opened(gen uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.unlock()
	if gen != c.gen {
		return false
	}
	c.conn = conn
	c.attempts = 0
	c.setStateLocked(StateOpen)
	c.logger.Info("Stream connected", zap.String("job_id", string(c.jobID)))
	c.sink.AppendEvent(model.EventLogEntry{
		Level:   model.LevelInfo,
		Kind:    model.KindSystem,
		Message: "Connected to processing server",
	})
	return true
}

func (c *Client) received(gen uint64, frame []byte) {
	c.mu.Lock()
	defer c.unlock()
	if gen != c.gen {
		return
	}
	msg, err := protocol.Decode(frame)
	if err != nil {
		c.diagnose("Failed to parse stream message", err)
		return
	}
	c.dispatchLocked(msg)
}

func (c *Client) transportError(gen uint64, err error) {
	c.mu.Lock()
	defer c.unlock()
	if gen != c.gen || c.ctx.Err() != nil {
		return
	}
	c.diagnose("Stream transport error", err)
	c.sink.AppendEvent(model.EventLogEntry{
		Level:   model.LevelError,
		Kind:    model.KindSystem,
		Message: "Connection error occurred",
	})
}

func (c *Client) transportClosed(gen uint64) {
	c.mu.Lock()
	defer c.unlock()
	if gen != c.gen {
		return
	}
	c.conn = nil
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	if c.ctx.Err() != nil {
		// The caller's context ended: that is a teardown, not a drop.
		c.gen++
		c.setStateLocked(StateClosed)
		c.closeDoneLocked()
		return
	}

	if c.attempts < c.backoff.MaxAttempts {
		delay := c.backoff.Delay(c.attempts)
		c.attempts++
		c.logger.Warn("Stream closed, reconnecting",
			zap.String("job_id", string(c.jobID)),
			zap.Int("attempt", c.attempts),
			zap.Duration("delay", delay))
		c.sink.AppendEvent(model.EventLogEntry{
			Level:   model.LevelWarning,
			Kind:    model.KindSystem,
			Message: fmt.Sprintf("Reconnecting... (attempt %d)", c.attempts),
		})
		c.setStateLocked(StateReconnectScheduled)
		c.timer = c.clock.AfterFunc(delay, func() { c.reconnect(gen) })
		return
	}

	c.logger.Error("Stream lost, giving up",
		zap.String("job_id", string(c.jobID)),
		zap.Int("attempts", c.attempts))
	c.sink.AppendEvent(model.EventLogEntry{
		Level:   model.LevelError,
		Kind:    model.KindSystem,
		Message: "Connection lost. Please refresh the page.",
	})
	c.notifyLocked(Notification{
		Title:       "Connection Lost",
		Description: "Unable to reconnect. Please refresh the page.",
		Severity:    SeverityDestructive,
	})
	c.setStateLocked(StateGaveUp)
	c.closeDoneLocked()
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.unlock()
	if gen != c.gen || c.state != StateReconnectScheduled {
		return
	}
	c.timer = nil
	c.connectLocked()
}

// teardownLocked invalidates the current generation and releases the timer
// and the transport.
func (c *Client) teardownLocked() {
	c.gen++
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Closing stream", zap.Error(err))
		}
		c.conn = nil
	}
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) setStateLocked(s ConnectionState) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		fn := c.onState
		c.effects = append(c.effects, func() { fn(s) })
	}
}

func (c *Client) resetDoneLocked() {
	select {
	case <-c.done:
		c.done = make(chan struct{})
	default:
	}
}

func (c *Client) closeDoneLocked() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// notifyLocked defers the notification until mu is released so a notifier
// that calls back into the client cannot deadlock.
func (c *Client) notifyLocked(n Notification) {
	notifier := c.notifier
	c.effects = append(c.effects, func() { notifier.Notify(n) })
}

func (c *Client) diagnose(what string, err error) {
	c.logger.Debug(what, zap.String("job_id", string(c.jobID)), zap.Error(err))
	c.diagnostics.LogDiagnostic(what, err)
}

// unlock releases mu and then runs the side effects queued while it was held.
func (c *Client) unlock() {
	effects := c.effects
	c.effects = nil
	c.mu.Unlock()
	for _, fn := range effects {
		fn()
	}
}
