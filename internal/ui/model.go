package ui

import (
	"context"
	"time"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"forensicwatch/internal/jobstate"
	"forensicwatch/internal/model"
	"forensicwatch/internal/stream"
)

const (
	barWidth      = 24
	visibleEvents = 8
)

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	sess Session
	cfg  Config

	view    jobstate.View
	conn    stream.ConnectionState
	toast   *stream.Notification
	summary Summary

	// UI
	width   int
	styles  Styles
	spinner spinner.Model
	bars    map[model.StageID]bubblesprogress.Model
	upload  bubblesprogress.Model
}

func NewModel(ctx context.Context, sess Session, cfg Config) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sty.Spinner

	bars := make(map[model.StageID]bubblesprogress.Model)
	for _, id := range sess.Store.StageIDs() {
		bars[id] = newBar()
	}

	return Model{
		ctx:     c,
		cancel:  cancel,
		sess:    sess,
		cfg:     cfg,
		view:    sess.Store.Snapshot(),
		conn:    sess.Client.State(),
		summary: Summary{JobID: cfg.JobID},
		styles:  sty,
		spinner: sp,
		bars:    bars,
		upload:  newBar(),
	}
}

func newBar() bubblesprogress.Model {
	return bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(barWidth),
		bubblesprogress.WithoutPercentage(),
	)
}

// Summary reports how the session ended.
func (m Model) Summary() Summary {
	return m.summary
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.listenCmd(), tickCmd()}
	if m.cfg.Upload != nil {
		cmds = append(cmds, m.uploadCmd())
	} else {
		cmds = append(cmds, m.connectCmd(m.cfg.JobID))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.sess.Client.Disconnect()
			m.cancel()
			return m, tea.Quit
		case "r":
			// m.conn trails the client by one message, so ask it directly.
			if m.summary.JobID != "" && !m.sess.Client.IsConnected() && m.conn != stream.StateConnecting {
				return m, m.connectCmd(m.summary.JobID)
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case storeChangedMsg:
		m.view = m.sess.Store.Snapshot()
		return m, m.listenCmd()

	case stateMsg:
		m.conn = msg.State
		if m.summary.observe(msg, m.cfg.Stay) {
			m.view = m.sess.Store.Snapshot()
			return m, tea.Quit
		}
		return m, m.listenCmd()

	case notifyMsg:
		n := msg.N
		m.toast = &n
		m.summary.observe(msg, m.cfg.Stay)
		return m, m.listenCmd()

	case resultMsg:
		m.view = m.sess.Store.Snapshot()
		if m.summary.observe(msg, m.cfg.Stay) {
			return m, tea.Quit
		}
		return m, m.listenCmd()

	case uploadedMsg:
		if msg.Err != nil {
			m.summary.Err = msg.Err
			return m, tea.Quit
		}
		m.summary.JobID = msg.JobID
		m.sess.Store.SetJobID(msg.JobID)
		return m, m.connectCmd(msg.JobID)

	case connectFailedMsg:
		m.summary.Err = msg.Err
		return m, tea.Quit

	case ctxDoneMsg:
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// listenCmd waits for the next store change or bridge message. Each handled
// message re-arms it, so exactly one listener is outstanding.
func (m Model) listenCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return ctxDoneMsg{}
		case msg := <-m.sess.Bridge.ch:
			return msg
		case <-m.sess.Store.Changes():
			return storeChangedMsg{}
		}
	}
}

func (m Model) connectCmd(id model.JobID) tea.Cmd {
	return func() tea.Msg {
		if err := m.sess.Client.Connect(m.ctx, id); err != nil {
			return connectFailedMsg{Err: err}
		}
		return nil
	}
}

func (m Model) uploadCmd() tea.Cmd {
	return func() tea.Msg {
		id, err := m.cfg.Upload(m.ctx, m.sess.Store.SetUploadProgress)
		return uploadedMsg{JobID: id, Err: err}
	}
}

// tickCmd refreshes elapsed times of running stages.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}
