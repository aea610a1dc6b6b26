package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/trendcast/internal/feed"
	"github.com/muesli/reflow/truncate"
)

// statusDisplay renders the playback status from controller snapshots.
type statusDisplay struct {
	state            feed.State
	index            int
	total            int
	position         time.Duration
	duration         time.Duration
	percent          float64
	cached           bool
	audioUnavailable bool
	errorMessage     string

	bar progress.Model
}

func newStatusDisplay() statusDisplay {
	return statusDisplay{
		state: feed.StateIdle,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
		),
	}
}

// update copies the fields the status bar shows out of s.
func (s *statusDisplay) update(snap feed.Snapshot) {
	s.state = snap.State
	s.index = snap.Index
	s.total = snap.Total
	s.position = snap.Position
	s.duration = snap.Duration
	s.percent = snap.Percent
	s.cached = snap.Cached
	s.audioUnavailable = snap.AudioUnavailable()

	s.errorMessage = ""
	if snap.Err != nil {
		s.errorMessage = snap.Err.Error()
	}
}

// compactStatus returns the icon, counter and clock for the status bar.
func (s statusDisplay) compactStatus() string {
	if s.state == feed.StateIdle || s.total == 0 {
		return ""
	}

	status := lipgloss.NewStyle().
		Foreground(s.stateColor()).
		Render(fmt.Sprintf("%s %s", s.stateIcon(), s.state))

	counter := fmt.Sprintf(" %d/%d", s.index+1, s.total)
	if s.duration > 0 {
		counter += fmt.Sprintf(" %s/%s", formatDuration(s.position), formatDuration(s.duration))
	}
	if s.cached {
		counter += " ●"
	}
	return status + statusBarPositionStyle(counter)
}

// errorLine is shown under the card while the track is in error.
func (s statusDisplay) errorLine(width int) string {
	if s.errorMessage == "" {
		return ""
	}
	msg := s.errorMessage
	if s.audioUnavailable {
		msg = "audio unavailable, showing text"
	}
	if width > 2 {
		msg = truncate.StringWithTail(msg, uint(width-2), ellipsis) //nolint:gosec
	}
	return lipgloss.NewStyle().Foreground(red).Render("✗ " + msg)
}

// progressBar returns the playback bar at the given width.
func (s statusDisplay) progressBar(width int) string {
	if s.total == 0 || width < 10 {
		return ""
	}
	bar := s.bar
	bar.Width = width
	return bar.ViewAs(s.percent / 100)
}

func (s statusDisplay) stateColor() lipgloss.TerminalColor {
	switch s.state {
	case feed.StatePlaying:
		return green
	case feed.StatePaused:
		return yellow
	case feed.StateLoading:
		return lipgloss.Color("#00AAFF")
	case feed.StateError:
		return red
	default:
		return gray
	}
}

func (s statusDisplay) stateIcon() string {
	switch s.state {
	case feed.StatePlaying:
		return "▶"
	case feed.StatePaused:
		return "⏸"
	case feed.StateReady:
		return "■"
	case feed.StateLoading:
		return "⟳"
	case feed.StateError:
		return "✗"
	default:
		return "○"
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
