package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run launches the TUI and blocks until the watch ends.
func Run(ctx context.Context, sess Session, cfg Config) (Summary, error) {
	defer sess.Bridge.Close()

	m := NewModel(ctx, sess, cfg)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return m.Summary(), err
	}
	if fm, ok := final.(Model); ok {
		fm.cancel()
		return fm.Summary(), fm.Summary().Err
	}
	m.cancel()
	return m.Summary(), nil
}
