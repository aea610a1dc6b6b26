package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/trendcast/internal/trend"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

const maxSearchResults = 8

// titles adapts a feed to fuzzy.Source.
type titles []trend.Item

func (t titles) String(i int) string { return t[i].Title + " " + t[i].Topic }
func (t titles) Len() int            { return len(t) }

// searchModel is the "/" jump-to-title prompt.
type searchModel struct {
	active  bool
	input   textinput.Model
	matches fuzzy.Matches
	cursor  int
}

func newSearchModel() searchModel {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "jump to title"
	ti.CharLimit = 64
	return searchModel{input: ti}
}

func (s *searchModel) open() tea.Cmd {
	s.active = true
	s.cursor = 0
	s.matches = nil
	s.input.SetValue("")
	return s.input.Focus()
}

func (s *searchModel) close() {
	s.active = false
	s.input.Blur()
}

// filter reruns the fuzzy match against items.
func (s *searchModel) filter(items []trend.Item) {
	q := strings.TrimSpace(s.input.Value())
	if q == "" {
		s.matches = nil
		s.cursor = 0
		return
	}
	s.matches = fuzzy.FindFrom(q, titles(items))
	if len(s.matches) > maxSearchResults {
		s.matches = s.matches[:maxSearchResults]
	}
	if s.cursor >= len(s.matches) {
		s.cursor = max(0, len(s.matches)-1)
	}
}

// selected returns the feed index under the cursor.
func (s searchModel) selected() (int, bool) {
	if len(s.matches) == 0 {
		return 0, false
	}
	return s.matches[s.cursor].Index, true
}

func (s searchModel) update(msg tea.Msg, items []trend.Item) (searchModel, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "up", "ctrl+p":
			if s.cursor > 0 {
				s.cursor--
			}
			return s, nil
		case "down", "ctrl+n":
			if s.cursor < len(s.matches)-1 {
				s.cursor++
			}
			return s, nil
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	s.filter(items)
	return s, cmd
}

func (s searchModel) view(items []trend.Item, width int) string {
	var b strings.Builder
	b.WriteString(s.input.View())
	for i, m := range s.matches {
		b.WriteString("\n")
		title := items[m.Index].Title
		if width > 4 {
			title = runewidth.Truncate(title, width-4, ellipsis)
		}
		line := "  " + title
		if i == s.cursor {
			line = selectedStyle("› " + title)
		}
		if topic := items[m.Index].Topic; topic != "" && runewidth.StringWidth(title)+len(topic)+6 < width {
			line += " " + dimStyle(topic)
		}
		b.WriteString(line)
	}
	if len(s.matches) == 0 && s.input.Value() != "" {
		b.WriteString("\n" + subtleStyle("  no matches"))
	}
	return b.String()
}
