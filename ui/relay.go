package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/trendcast/internal/feed"
)

// Relay hands controller snapshots to the program. It holds only the
// newest snapshot, so a slow render never backs up the event loop.
type Relay struct {
	ch chan feed.Snapshot
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{ch: make(chan feed.Snapshot, 1)}
}

// Publish replaces any pending snapshot with s. Use it as the
// controller's listener.
func (r *Relay) Publish(s feed.Snapshot) {
	for {
		select {
		case r.ch <- s:
			return
		default:
		}
		select {
		case <-r.ch:
		default:
		}
	}
}

func (r *Relay) wait() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-r.ch)
	}
}
