package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/yt2spotify/internal/formatter"
)

const (
	spotifyGreen = lipgloss.Color("#1DB954")
	foundGreen   = lipgloss.Color("#04B575")
	missingRed   = lipgloss.Color("#FF5F5F")
	warnOrange   = lipgloss.Color("#FFA500")
	mutedGray    = lipgloss.Color("#626262")
)

var styles = newTheme()

// theme holds the styles shared by every view.
type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newTheme() theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return theme{
		title: fg(spotifyGreen).Bold(true).MarginBottom(1),
		ok:    fg(foundGreen).Bold(true),
		err:   fg(missingRed).Bold(true),
		warn:  fg(warnOrange),
		help:  fg(mutedGray).Italic(true),
	}
}

// mark renders the found/missing symbol in its color.
func (t theme) mark(found bool) string {
	if found {
		return t.ok.Render(formatter.Mark(true))
	}
	return t.err.Render(formatter.Mark(false))
}
