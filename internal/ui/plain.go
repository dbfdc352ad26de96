package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"forensicwatch/internal/estimate"
	"forensicwatch/internal/model"
	"forensicwatch/internal/stream"
)

// Printer writes each new event once, oldest first, as plain lines.
type Printer struct {
	w      io.Writer
	styles Styles
	lastID string
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: defaultStyles()}
}

// PrintNew prints the events appended since the previous call. events is
// most recent first, as the store returns it.
func (p *Printer) PrintNew(events []model.EventLogEntry) {
	if len(events) == 0 {
		return
	}
	fresh := events
	if p.lastID != "" {
		for i, e := range events {
			if e.ID == p.lastID {
				fresh = events[:i]
				break
			}
		}
	}
	for i := len(fresh) - 1; i >= 0; i-- {
		fmt.Fprintln(p.w, eventLine(p.styles, fresh[i]))
	}
	p.lastID = events[0].ID
}

// Notify echoes a notification.
func (p *Printer) Notify(n stream.Notification) {
	style := p.styles.Info
	if n.Severity == stream.SeverityDestructive {
		style = p.styles.Error
	}
	line := style.Render("▲ " + n.Title)
	if n.Description != "" {
		line += ": " + n.Description
	}
	fmt.Fprintln(p.w, line)
}

// Upload prints upload progress in 10% steps.
func (p *Printer) Upload(name string) func(int) {
	last := -1
	return func(pct int) {
		step := pct / 10
		if step == last {
			return
		}
		last = step
		fmt.Fprintf(p.w, "Uploading %s... %d%%\n", name, pct)
	}
}

// StageTable renders the final stage table and the estimate.
func (p *Printer) StageTable(stages []model.StageRecord, ids []model.StageID) {
	var b strings.Builder
	for i, rec := range stages {
		d := ""
		if dur, ok := rec.Duration(); ok {
			d = dur.String()
		}
		fmt.Fprintf(&b, "  %-9s %-10s %3d%%  %s\n", ids[i], rec.Status, rec.Progress, d)
	}
	b.WriteString("  " + estimate.Format(estimate.Remaining(stages)) + "\n")
	fmt.Fprint(p.w, b.String())
}

// RunPlain watches a job without a TUI, printing events as they arrive.
func RunPlain(ctx context.Context, sess Session, cfg Config, w io.Writer) (Summary, error) {
	defer sess.Bridge.Close()
	p := NewPrinter(w)
	summary := Summary{JobID: cfg.JobID}

	if cfg.Upload != nil {
		name := cfg.FileName
		if name == "" {
			name = "document"
		}
		report := p.Upload(name)
		id, err := cfg.Upload(ctx, func(pct int) {
			sess.Store.SetUploadProgress(pct)
			report(pct)
		})
		if err != nil {
			summary.Err = err
			return summary, err
		}
		summary.JobID = id
		sess.Store.SetJobID(id)
		fmt.Fprintf(w, "Job %s created\n", id)
	}

	if err := sess.Client.Connect(ctx, summary.JobID); err != nil {
		summary.Err = err
		return summary, err
	}

	for {
		select {
		case <-ctx.Done():
			p.PrintNew(sess.Store.Events())
			return summary, nil
		case <-sess.Store.Changes():
			p.PrintNew(sess.Store.Events())
		case msg := <-sess.Bridge.ch:
			if n, ok := msg.(notifyMsg); ok {
				p.PrintNew(sess.Store.Events())
				p.Notify(n.N)
			}
			if summary.observe(msg, cfg.Stay) {
				p.PrintNew(sess.Store.Events())
				view := sess.Store.Snapshot()
				recs := make([]model.StageRecord, len(view.Stages))
				ids := make([]model.StageID, len(view.Stages))
				for i, st := range view.Stages {
					recs[i], ids[i] = st.StageRecord, st.ID
				}
				p.StageTable(recs, ids)
				return summary, nil
			}
		}
	}
}
