package ui

import (
	"github.com/charmbracelet/lipgloss"

	"forensicwatch/internal/model"
)

type Styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Header    lipgloss.Style
	StageName lipgloss.Style
	Info      lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Faint     lipgloss.Style
	Box       lipgloss.Style
	Spinner   lipgloss.Style
	Toast     lipgloss.Style
	ToastBad  lipgloss.Style
}

func defaultStyles() Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Title:     base.Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Subtitle:  base.Faint(true),
		Header:    base.Bold(true),
		StageName: base.Foreground(lipgloss.Color("#D1D5DB")).Width(9),
		Info:      base.Foreground(lipgloss.Color("#60A5FA")),
		Success:   base.Foreground(lipgloss.Color("#22C55E")),
		Error:     base.Foreground(lipgloss.Color("#EF4444")),
		Warning:   base.Foreground(lipgloss.Color("#F59E0B")),
		Faint:     base.Faint(true),
		Box:       base.Padding(0, 1),
		Spinner:   base.Foreground(lipgloss.Color("#22D3EE")),
		Toast:     base.Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#60A5FA")),
		ToastBad:  base.Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#EF4444")),
	}
}

func (s Styles) level(l model.EventLevel) lipgloss.Style {
	switch l {
	case model.LevelSuccess:
		return s.Success
	case model.LevelWarning:
		return s.Warning
	case model.LevelError:
		return s.Error
	default:
		return s.Info
	}
}

func (s Styles) status(st model.StageStatus) lipgloss.Style {
	switch st {
	case model.StatusCompleted:
		return s.Success
	case model.StatusFailed:
		return s.Error
	case model.StatusProcessing:
		return s.Info
	default:
		return s.Faint
	}
}
