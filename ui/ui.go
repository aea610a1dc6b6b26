// Package ui provides the terminal player for the trend feed.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/feed"
	"github.com/dgnsrekt/trendcast/internal/fetcher"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	populatingRetry      = 10 * time.Second
	fetchTimeout         = 2 * time.Minute
	footerHeight         = 3 // error line, progress bar, status bar
	ellipsis             = "…"
)

// Fetcher loads the feed.
type Fetcher interface {
	Fetch(ctx context.Context, interests []string) (fetcher.Result, error)
}

// Session is the part of the feed controller the UI drives. Its methods
// are only ever called through Deps.Post.
type Session interface {
	Mount(items []trend.Item)
	Unmount()
	Next()
	Prev()
	Select(i int)
	Toggle()
}

// Deps wires the model to the rest of the application.
type Deps struct {
	Fetcher Fetcher
	Session Session
	// Post runs fn on the controller's event loop.
	Post  func(fn func())
	Relay *Relay
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting trendcast", "glamour", cfg.GlamourEnabled, "interests", cfg.Interests)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

// state is the top-level application state.
type state int

const (
	stateFetching state = iota
	stateFeed
	stateEmpty
)

func (s state) String() string {
	return map[state]string{
		stateFetching: "fetching feed",
		stateFeed:     "showing feed",
		stateEmpty:    "showing banner",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	deps     Deps
	keys     keyMap
	state    state
	fatalErr error

	items    []trend.Item
	result   fetcher.Result
	fetchErr error
	fetchSeq int

	snap      feed.Snapshot
	status    statusDisplay
	cardKey   string
	cardReady bool

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	search   searchModel
	showHelp bool

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, deps Deps) model {
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	h := help.New()
	h.ShowAll = true

	return model{
		common:   &commonModel{cfg: cfg},
		deps:     deps,
		keys:     defaultKeyMap(),
		state:    stateFetching,
		status:   newStatusDisplay(),
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     h,
		search:   newSearchModel(),
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		fetchFeed(m.deps.Fetcher, m.common.cfg.Interests, m.fetchSeq),
	}
	if m.deps.Relay != nil {
		cmds = append(cmds, m.deps.Relay.wait())
	}
	return tea.Batch(cmds...)
}

func (m model) post(fn func()) {
	if m.deps.Post != nil {
		m.deps.Post(fn)
	}
}

// refetch drops the mounted feed and asks for a new one.
func (m *model) refetch() tea.Cmd {
	if m.state == stateFeed {
		session := m.deps.Session
		m.post(session.Unmount)
	}
	m.fetchSeq++
	m.state = stateFetching
	m.items = nil
	m.cardKey = ""
	m.cardReady = false
	m.search.close()
	return tea.Batch(m.spinner.Tick, fetchFeed(m.deps.Fetcher, m.common.cfg.Interests, m.fetchSeq))
}

func (m *model) setSize(w, h int) {
	m.common.width = w
	m.common.height = h
	m.help.Width = w
	m.viewport.Width = w

	height := h - footerHeight
	switch {
	case m.search.active:
		height -= maxSearchResults + 1
	case m.showHelp:
		height -= lipgloss.Height(m.helpView())
	}
	m.viewport.Height = max(0, height)
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.search.active {
			return m.updateSearch(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.state == stateFeed {
				m.post(m.deps.Session.Unmount)
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			if m.state == stateFeed {
				m.post(m.deps.Session.Toggle)
			}
			return m, nil

		case key.Matches(msg, m.keys.Next):
			if m.state == stateFeed {
				m.post(m.deps.Session.Next)
			}
			return m, nil

		case key.Matches(msg, m.keys.Prev):
			if m.state == stateFeed {
				m.post(m.deps.Session.Prev)
			}
			return m, nil

		case key.Matches(msg, m.keys.Jump):
			i := int(msg.String()[0] - '1')
			if m.state == stateFeed && i < len(m.items) {
				session := m.deps.Session
				m.post(func() { session.Select(i) })
			}
			return m, nil

		case key.Matches(msg, m.keys.Search):
			if m.state != stateFeed || len(m.items) == 0 {
				return m, nil
			}
			cmd := m.search.open()
			m.setSize(m.common.width, m.common.height)
			return m, cmd

		case key.Matches(msg, m.keys.Copy):
			text := m.snap.Text
			if text == "" {
				return m, nil
			}
			// Copy using OSC 52
			te.Copy(text)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(text)
			return m, m.showStatusMessage("Copied script")

		case key.Matches(msg, m.keys.Reload):
			return m, m.refetch()

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.setSize(m.common.width, m.common.height)
			return m, nil
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		m.cardKey = ""
		if cmd := m.renderCurrent(); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case feedFetchedMsg:
		if msg.seq != m.fetchSeq {
			return m, nil
		}
		return m.applyFetch(msg)

	case refetchMsg:
		if msg.seq == m.fetchSeq && m.state == stateEmpty {
			return m, m.refetch()
		}
		return m, nil

	case InterestsMsg:
		m.common.cfg.Interests = []string(msg)
		log.Info("Interests changed, reloading feed", "interests", m.common.cfg.Interests)
		return m, m.refetch()

	case snapshotMsg:
		prev := m.snap.State
		m.snap = feed.Snapshot(msg)
		m.status.update(m.snap)
		if m.deps.Relay != nil {
			cmds = append(cmds, m.deps.Relay.wait())
		}
		if m.snap.State == feed.StateLoading && prev != feed.StateLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		if cmd := m.renderCurrent(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case cardRenderedMsg:
		if msg.key == m.cardKey {
			m.viewport.SetContent(msg.content)
			m.viewport.GotoTop()
			m.cardReady = true
		}
		return m, nil

	case spinner.TickMsg:
		if m.state == stateFetching || m.snap.State == feed.StateLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		return m, nil

	case errMsg:
		m.fatalErr = msg
		return m, nil
	}

	if m.state == stateFeed {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.search.close()
		m.setSize(m.common.width, m.common.height)
		return m, nil
	case "enter":
		if i, ok := m.search.selected(); ok {
			session := m.deps.Session
			m.post(func() { session.Select(i) })
		}
		m.search.close()
		m.setSize(m.common.width, m.common.height)
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.update(msg, m.items)
	return m, cmd
}

func (m model) applyFetch(msg feedFetchedMsg) (tea.Model, tea.Cmd) {
	m.result = msg.result
	m.fetchErr = msg.err

	switch {
	case msg.result.Status == fetcher.StatusOK && len(msg.result.Items) > 0:
		m.state = stateFeed
		m.items = msg.result.Items
		log.Debug("Feed loaded",
			"items", len(m.items),
			"tier", msg.result.Tier,
			"stale", msg.result.Stale,
			"fell_back", msg.result.FellBack)

		items, session := m.items, m.deps.Session
		m.post(func() { session.Mount(items) })
		return m, nil

	case msg.result.Status == fetcher.StatusPopulating:
		m.state = stateEmpty
		seq := m.fetchSeq
		return m, tea.Tick(populatingRetry, func(time.Time) tea.Msg {
			return refetchMsg{seq: seq}
		})

	default:
		m.state = stateEmpty
		if msg.err != nil {
			log.Error("Could not load feed", "err", msg.err)
		}
		return m, nil
	}
}

// renderCurrent renders the card for the current snapshot unless the
// viewport already shows it.
func (m *model) renderCurrent() tea.Cmd {
	if m.state != stateFeed || m.snap.Total == 0 || m.common.width == 0 {
		return nil
	}
	k := fmt.Sprintf("%s|%d|%d", m.snap.Item.ID, len(m.snap.Text), m.common.width)
	if k == m.cardKey {
		return nil
	}
	m.cardKey = k

	md := cardMarkdown(m.snap.Item, m.snap.Text, m.result.GeneratedAt, time.Now())
	cfg, width := m.common.cfg, m.viewport.Width
	return func() tea.Msg {
		out, err := renderCard(cfg, width, md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return cardRenderedMsg{key: k, content: out}
	}
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	body := lipgloss.NewStyle().Height(m.viewport.Height).MaxHeight(m.viewport.Height)

	switch m.state {
	case stateFetching:
		b.WriteString(body.Render("\n  " + m.spinner.View() + " Loading trends…"))
	case stateEmpty:
		populating := m.result.Status == fetcher.StatusPopulating
		b.WriteString(body.Render("\n" + indent(bannerStyle(bannerText(populating, m.fetchErr)), 2)))
	default:
		if m.cardReady {
			b.WriteString(m.viewport.View())
		} else {
			b.WriteString(body.Render("\n  " + m.spinner.View() + " Preparing card…"))
		}
	}
	b.WriteString("\n")

	b.WriteString(m.status.errorLine(m.common.width) + "\n")
	b.WriteString(m.status.progressBar(m.common.width) + "\n")

	switch {
	case m.search.active:
		b.WriteString(m.search.view(m.items, m.common.width) + "\n")
	case m.showHelp:
		b.WriteString(m.helpView() + "\n")
	}

	m.statusBarView(&b)
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	position := m.status.compactStatus()
	if m.snap.State == feed.StateLoading {
		position = m.spinner.View() + position
	}
	if position != "" {
		position = " " + position + " "
	}

	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	showStatusMessage := m.statusMessage != ""
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = m.noteText()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := statusBarNoteStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		position,
		helpNote,
	)
}

// noteText describes where the feed came from.
func (m model) noteText() string {
	scope := "all topics"
	if len(m.common.cfg.Interests) > 0 {
		scope = strings.Join(m.common.cfg.Interests, ", ")
	}

	switch m.state {
	case stateFetching:
		return "fetching " + scope
	case stateEmpty:
		if m.result.Status == fetcher.StatusPopulating {
			return "populating"
		}
		return "unavailable"
	}

	note := scope
	if m.result.FellBack {
		note = "nothing matched " + scope + ", showing everything"
	}
	if m.result.Stale {
		note += " (stale)"
	}
	return note
}

func (m model) helpView() string {
	s := indent(m.help.View(m.keys), 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
		for i := range lines {
			n := max(m.common.width-ansi.PrintableRuneWidth(lines[i]), 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle("ERROR"),
		err,
		subtleStyle(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func fetchFeed(f Fetcher, interests []string, seq int) tea.Cmd {
	return func() tea.Msg {
		if f == nil {
			return feedFetchedMsg{seq: seq, result: fetcher.Result{Status: fetcher.StatusUnavailable}, err: fetcher.ErrNoContent}
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		res, err := f.Fetch(ctx, interests)
		return feedFetchedMsg{seq: seq, result: res, err: err}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
