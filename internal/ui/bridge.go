package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"forensicwatch/internal/model"
	"forensicwatch/internal/stream"
)

type storeChangedMsg struct{}

type stateMsg struct {
	State stream.ConnectionState
}

type notifyMsg struct {
	N stream.Notification
}

type resultMsg struct {
	JobID model.JobID
}

type uploadedMsg struct {
	JobID model.JobID
	Err   error
}

type connectFailedMsg struct {
	Err error
}

type tickMsg struct{}

type ctxDoneMsg struct{}

// Bridge carries stream client callbacks to whichever renderer is running.
// It is the client's Notifier, state hook and result hook. Sends block until
// the renderer takes the message or the bridge is closed.
type Bridge struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// Notify implements stream.Notifier.
func (b *Bridge) Notify(n stream.Notification) {
	b.send(notifyMsg{N: n})
}

// State is the stream client's state hook.
func (b *Bridge) State(s stream.ConnectionState) {
	b.send(stateMsg{State: s})
}

// Result is the stream client's result hook.
func (b *Bridge) Result(jobID model.JobID, _ model.Results) {
	b.send(resultMsg{JobID: jobID})
}

// Close unblocks pending and future sends.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}
