package stream

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensicwatch/internal/jobstate"
	"forensicwatch/internal/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	client *Client
	store  *jobstate.Store
	clock  *manualClock
	dialer *fakeDialer
	notes  *notificationRecorder
	diags  *diagnosticRecorder
}

func newHarness(t *testing.T, next func(n int) (Conn, error), opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:  jobstate.New(),
		clock:  &manualClock{},
		dialer: &fakeDialer{next: next},
		notes:  &notificationRecorder{},
		diags:  &diagnosticRecorder{},
	}
	base, err := url.Parse("http://localhost:8000")
	require.NoError(t, err)
	all := append([]Option{
		WithBaseURL(base),
		WithDialer(h.dialer),
		WithClock(h.clock),
		WithNotifier(h.notes),
		WithDiagnostics(h.diags),
	}, opts...)
	h.client = New(h.store, all...)
	t.Cleanup(h.client.Disconnect)
	return h
}

func refuse(int) (Conn, error) {
	return nil, errors.New("connection refused")
}

func connsOf(conns ...*fakeConn) func(int) (Conn, error) {
	return func(n int) (Conn, error) {
		if n < len(conns) {
			return conns[n], nil
		}
		return nil, errors.New("no more conns")
	}
}

func (h *harness) waitState(t *testing.T, want ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == want }, waitFor, tick,
		"state never became %s (is %s)", want, h.client.State())
}

func (h *harness) waitTimers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.clock.len() == n }, waitFor, tick)
}

func messages(events []model.EventLogEntry, keep func(model.EventLogEntry) bool) []string {
	var out []string
	// Events are newest first; report them in arrival order.
	for i := len(events) - 1; i >= 0; i-- {
		if keep(events[i]) {
			out = append(out, events[i].Message)
		}
	}
	return out
}

func assertClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	default:
		t.Fatal("done channel still open")
	}
}

func byLevel(l model.EventLevel) func(model.EventLogEntry) bool {
	return func(e model.EventLogEntry) bool { return e.Level == l }
}

func byKind(k model.EventKind) func(model.EventLogEntry) bool {
	return func(e model.EventLogEntry) bool { return e.Kind == k }
}

func TestConnectRequiresJobID(t *testing.T) {
	h := newHarness(t, refuse)
	require.Error(t, h.client.Connect(context.Background(), ""))
	assert.Equal(t, StateIdle, h.client.State())
	assert.Zero(t, h.dialer.dials())
}

func TestReconnectBackoffThenGiveUp(t *testing.T) {
	h := newHarness(t, refuse)
	require.NoError(t, h.client.Connect(context.Background(), "J1"))

	for i := 0; i < DefaultBackoff.MaxAttempts; i++ {
		h.waitTimers(t, i+1)
		h.waitState(t, StateReconnectScheduled)
		h.clock.fire(i)
	}
	h.waitState(t, StateGaveUp)

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}, h.clock.delays())
	assert.Equal(t, 6, h.dialer.dials())
	assert.Equal(t, 5, h.clock.len(), "no timer after giving up")

	events := h.store.Events()
	assert.Equal(t, []string{
		"Reconnecting... (attempt 1)",
		"Reconnecting... (attempt 2)",
		"Reconnecting... (attempt 3)",
		"Reconnecting... (attempt 4)",
		"Reconnecting... (attempt 5)",
	}, messages(events, byLevel(model.LevelWarning)))
	assert.Equal(t, "Connection lost. Please refresh the page.", events[0].Message)
	assert.Equal(t, model.LevelError, events[0].Level)

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Connection Lost", notes[0].Title)
	assert.Equal(t, SeverityDestructive, notes[0].Severity)

	assert.False(t, h.client.IsConnected())
	assertClosed(t, h.client.Done())
}

func TestStageLifecycleOverStream(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)
	assert.Equal(t, "ws://localhost:8000/ws/job/J1", h.dialer.url(0))

	conn.send(t, `{"type":"stage_update","stage":"OCR","status":"processing","progress":0,"startTime":"2024-05-01T10:00:00Z"}`)
	conn.send(t, `{"type":"progress","stage":"OCR","progress":50}`)
	conn.send(t, `{"type":"stage_update","stage":"OCR","status":"completed","progress":100,"endTime":"2024-05-01T10:00:05Z"}`)

	require.Eventually(t, func() bool {
		rec, _ := h.store.Stage(model.StageOCR)
		return rec.Status == model.StatusCompleted
	}, waitFor, tick)

	rec, ok := h.store.Stage(model.StageOCR)
	require.True(t, ok)
	assert.Equal(t, 100, rec.Progress)
	require.NotNil(t, rec.StartTime)
	require.NotNil(t, rec.EndTime)
	d, ok := rec.Duration()
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	events := h.store.Events()
	assert.Equal(t, []string{"OCR processing", "OCR completed"}, messages(events, byKind(model.KindStage)))
	assert.Equal(t, []string{"Connected to processing server"}, messages(events, byKind(model.KindSystem)))
}

func TestProgressFrameUpdatesWithoutEvent(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	conn.send(t, `{"type":"progress","stage":"CNN","progress":42.6}`)
	require.Eventually(t, func() bool {
		rec, _ := h.store.Stage(model.StageCNN)
		return rec.Progress == 43
	}, waitFor, tick)

	rec, _ := h.store.Stage(model.StageCNN)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Len(t, h.store.Events(), 1)
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t, refuse)
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitTimers(t, 1)
	h.waitState(t, StateReconnectScheduled)

	h.client.Disconnect()
	assert.Equal(t, StateClosed, h.client.State())
	assert.True(t, h.clock.stopped(0))

	// A callback that raced the stop must still be ignored.
	h.clock.forceFire(0)
	assert.Equal(t, 1, h.dialer.dials())
	assert.Equal(t, StateClosed, h.client.State())

	select {
	case <-h.client.Done():
	default:
		t.Fatal("Done not closed after Disconnect")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t, refuse)
	h.client.Disconnect()
	h.client.Disconnect()
	assert.Equal(t, StateIdle, h.client.State())
}

func TestConnectSameJobIsNoop(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	assert.Equal(t, 1, h.dialer.dials())
	assert.False(t, conn.isClosed())
	assert.Equal(t, StateOpen, h.client.State())
}

func TestConnectOtherJobTearsDownCurrent(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	h := newHarness(t, connsOf(first, second))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)
	assert.True(t, h.client.IsConnected())

	firstDone := h.client.Done()

	require.NoError(t, h.client.Connect(context.Background(), "J2"))
	assert.True(t, first.isClosed())
	assertClosed(t, firstDone)
	secondDone := h.client.Done()
	assert.NotEqual(t, firstDone, secondDone)
	select {
	case <-secondDone:
		t.Fatal("done for J2 closed early")
	default:
	}
	require.Eventually(t, func() bool { return h.dialer.dials() == 2 }, waitFor, tick)
	assert.Equal(t, "ws://localhost:8000/ws/job/J2", h.dialer.url(1))
	h.waitState(t, StateOpen)
	assert.Equal(t, model.JobID("J2"), h.client.JobID())

	// The closed first stream must not schedule a reconnect.
	assert.Zero(t, h.clock.len())
	assert.Empty(t, messages(h.store.Events(), byLevel(model.LevelError)))
}

func TestSuccessfulOpenResetsAttempts(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	h := newHarness(t, connsOf(first, second))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	first.fail(io.EOF)
	h.waitTimers(t, 1)
	assert.Equal(t, 1, h.client.Attempts())
	h.clock.fire(0)
	h.waitState(t, StateOpen)
	assert.Zero(t, h.client.Attempts())

	second.fail(errors.New("connection reset by peer"))
	h.waitTimers(t, 2)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.clock.delays())

	// Only the unclean drop counts as a connection error.
	assert.Equal(t, []string{"Connection error occurred"}, messages(h.store.Events(), byLevel(model.LevelError)))
}

func TestContextCancelTearsDown(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.client.Connect(ctx, "J1"))
	h.waitState(t, StateOpen)

	cancel()
	h.waitState(t, StateClosed)
	assert.True(t, conn.isClosed())
	assert.Zero(t, h.clock.len())
	<-h.client.Done()
}

func TestExplicitConnectAfterGiveUpRestartsBudget(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, func(n int) (Conn, error) {
		if n < 2 {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	}, WithBackoff(Backoff{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 1}))

	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitTimers(t, 1)
	h.clock.fire(0)
	h.waitState(t, StateGaveUp)
	done := h.client.Done()

	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)
	assert.NotEqual(t, done, h.client.Done())
	assert.Equal(t, 3, h.dialer.dials())
}

func TestMalformedFramesOnlyReachDiagnostics(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	conn.send(t, `not json`)
	conn.send(t, `{"type":"progress"}`)
	conn.send(t, `[1,2,3]`)

	require.Eventually(t, func() bool { return len(h.diags.all()) == 3 }, waitFor, tick)
	for _, what := range h.diags.all() {
		assert.Equal(t, "Failed to parse stream message", what)
	}
	assert.Len(t, h.store.Events(), 1)
	assert.Equal(t, StateOpen, h.client.State())
}

func TestErrorMessageNotifies(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	conn.send(t, `{"type":"error","message":"OCR engine crashed"}`)
	require.Eventually(t, func() bool { return len(h.notes.all()) == 1 }, waitFor, tick)

	n := h.notes.all()[0]
	assert.Equal(t, "Processing Error", n.Title)
	assert.Equal(t, "OCR engine crashed", n.Description)
	assert.Equal(t, SeverityDestructive, n.Severity)

	latest := h.store.Events()[0]
	assert.Equal(t, model.LevelError, latest.Level)
	assert.Equal(t, model.KindError, latest.Kind)
	assert.Equal(t, "OCR engine crashed", latest.Message)
}

func TestUnknownTypeBecomesInfoEvent(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	conn.send(t, `{"type":"heartbeat","message":"still working"}`)
	conn.send(t, `{"type":"queue_position","position":3}`)
	require.Eventually(t, func() bool { return len(h.store.Events()) == 3 }, waitFor, tick)

	infos := messages(h.store.Events(), byKind(model.KindInfo))
	require.Len(t, infos, 2)
	assert.Equal(t, "still working", infos[0])
	assert.True(t, strings.Contains(infos[1], `"queue_position"`))
}

func TestUnknownTypeWithOddFieldsBecomesInfoEvent(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	conn.send(t, `{"type":"log","message":{"text":"queued behind 3 jobs"}}`)
	conn.send(t, `{"type":"queue","stage":7,"message":"waiting for a worker"}`)
	require.Eventually(t, func() bool { return len(h.store.Events()) == 3 }, waitFor, tick)

	infos := messages(h.store.Events(), byKind(model.KindInfo))
	require.Len(t, infos, 2)
	assert.Equal(t, `{"type":"log","message":{"text":"queued behind 3 jobs"}}`, infos[0])
	assert.Equal(t, "waiting for a worker", infos[1])
	assert.Empty(t, h.diags.all())
}

func TestUnknownStageLeavesSingleErrorEvent(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)
	before := h.store.Stages()

	conn.send(t, `{"type":"stage_update","stage":"Watermark","status":"processing"}`)
	require.Eventually(t, func() bool { return len(h.store.Events()) == 2 }, waitFor, tick)

	assert.Equal(t, before, h.store.Stages())
	assert.Equal(t, []string{`Dropped update for unknown stage "Watermark"`}, messages(h.store.Events(), byLevel(model.LevelError)))
	assert.Empty(t, messages(h.store.Events(), byKind(model.KindStage)))
	assert.Equal(t, []string{"Dropped stage update"}, h.diags.all())
}

func TestResultFrameStoresAndFiresHook(t *testing.T) {
	type hit struct {
		job     model.JobID
		results string
	}
	hits := make(chan hit, 1)

	conn := newFakeConn()
	h := newHarness(t, connsOf(conn), WithResultHook(func(id model.JobID, r model.Results) {
		hits <- hit{id, string(r)}
	}))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)

	conn.send(t, `{"type":"result","results":{"verdict":"tampered","score":0.91}}`)

	select {
	case got := <-hits:
		assert.Equal(t, model.JobID("J1"), got.job)
		assert.JSONEq(t, `{"verdict":"tampered","score":0.91}`, got.results)
	case <-time.After(waitFor):
		t.Fatal("result hook not called")
	}
	assert.JSONEq(t, `{"verdict":"tampered","score":0.91}`, string(h.store.Results()))

	latest := h.store.Events()[0]
	assert.Equal(t, model.LevelSuccess, latest.Level)
	assert.Equal(t, model.KindResult, latest.Kind)
	assert.Equal(t, "Analysis complete", latest.Message)
}

func TestStateHookSeesTransitions(t *testing.T) {
	states := make(chan ConnectionState, 16)
	conn := newFakeConn()
	h := newHarness(t, connsOf(conn), WithStateHook(func(s ConnectionState) { states <- s }))
	require.NoError(t, h.client.Connect(context.Background(), "J1"))
	h.waitState(t, StateOpen)
	h.client.Disconnect()

	var got []ConnectionState
	for len(got) < 3 {
		select {
		case s := <-states:
			got = append(got, s)
		case <-time.After(waitFor):
			t.Fatalf("got %v", got)
		}
	}
	// Hooks run outside the lock, so delivery order across goroutines is not fixed.
	assert.ElementsMatch(t, []ConnectionState{StateConnecting, StateOpen, StateClosed}, got)
}
