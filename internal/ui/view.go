package ui

import (
	"fmt"
	"strings"
	"time"

	"forensicwatch/internal/estimate"
	"forensicwatch/internal/jobstate"
	"forensicwatch/internal/model"
	"forensicwatch/internal/stream"
	"forensicwatch/internal/util/format"
)

func (m Model) View() string {
	parts := []string{m.viewHeader(), ""}
	if up := m.viewUpload(); up != "" {
		parts = append(parts, up, "")
	}
	parts = append(parts, m.viewStages(), m.viewETA(), "", m.viewEvents())
	if t := m.viewToast(); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, m.styles.Faint.Render("q: quit • r: reconnect"))
	return strings.Join(parts, "\n")
}

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("forensicwatch")
	job := m.summary.JobID
	if job == "" {
		job = m.view.JobID
	}
	label := "uploading"
	if job != "" {
		label = "job " + string(job)
	}
	return title + "  " + m.styles.Header.Render(label) + "  " + m.viewConn()
}

func (m Model) viewConn() string {
	switch m.conn {
	case stream.StateOpen:
		return m.styles.Success.Render("● connected")
	case stream.StateConnecting:
		return m.styles.Spinner.Render(m.spinner.View()) + m.styles.Faint.Render(" connecting")
	case stream.StateReconnectScheduled:
		return m.styles.Warning.Render("◌ reconnecting")
	case stream.StateGaveUp:
		return m.styles.Error.Render("✗ connection lost")
	case stream.StateClosed:
		return m.styles.Faint.Render("○ closed")
	default:
		return m.styles.Faint.Render("○ idle")
	}
}

func (m Model) viewUpload() string {
	p := m.view.UploadProgress
	if m.cfg.Upload == nil || m.summary.JobID != "" {
		return ""
	}
	name := m.cfg.FileName
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("%s %s %3d%%", m.styles.Subtitle.Render("Uploading "+name), m.upload.ViewAs(float64(p)/100), p)
}

func (m Model) viewStages() string {
	now := m.cfg.now()
	var b strings.Builder
	for i, st := range m.view.Stages {
		if i > 0 {
			b.WriteString("\n")
		}
		bar, ok := m.bars[st.ID]
		if !ok {
			bar = newBar()
		}
		icon := m.stageIcon(st.Status)
		status := m.styles.status(st.Status).Render(fmt.Sprintf("%-10s", st.Status))
		fmt.Fprintf(&b, "%s %s %s %s %3d%%  %s",
			icon,
			m.styles.StageName.Render(string(st.ID)),
			status,
			bar.ViewAs(float64(st.Progress)/100),
			st.Progress,
			m.styles.Faint.Render(stageTime(st, now)))
	}
	return m.styles.Box.Render(b.String())
}

func (m Model) stageIcon(s model.StageStatus) string {
	switch s {
	case model.StatusCompleted:
		return m.styles.Success.Render("✓")
	case model.StatusFailed:
		return m.styles.Error.Render("✗")
	case model.StatusProcessing:
		return m.styles.Spinner.Render(m.spinner.View())
	default:
		return m.styles.Faint.Render("○")
	}
}

func (m Model) viewETA() string {
	line := estimate.Format(m.view.Remaining)
	if m.view.HasResults() {
		return m.styles.Success.Render("Analysis complete")
	}
	return m.styles.Subtitle.Render(line)
}

func (m Model) viewEvents() string {
	events := m.view.Events
	if len(events) > visibleEvents {
		events = events[:visibleEvents]
	}
	if len(events) == 0 {
		return m.styles.Faint.Render("No events yet")
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, eventLine(m.styles, e))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewToast() string {
	if m.toast == nil {
		return ""
	}
	style := m.styles.Toast
	if m.toast.Severity == stream.SeverityDestructive {
		style = m.styles.ToastBad
	}
	text := m.styles.Header.Render(m.toast.Title)
	if m.toast.Description != "" {
		text += "\n" + m.toast.Description
	}
	return style.Render(text)
}

// stageTime is end-start for finished stages and the running time for
// stages still processing.
func stageTime(st jobstate.StageView, now time.Time) string {
	if d, ok := st.Duration(); ok {
		return format.Clock(d)
	}
	if st.Status == model.StatusProcessing && st.StartTime != nil {
		return format.Clock(now.Sub(*st.StartTime))
	}
	return ""
}

func eventLine(s Styles, e model.EventLogEntry) string {
	ts := s.Faint.Render(e.Timestamp.Local().Format("15:04:05"))
	tag := s.level(e.Level).Render(fmt.Sprintf("%-7s", e.Level))
	return fmt.Sprintf("%s %s %s", ts, tag, e.Message)
}
