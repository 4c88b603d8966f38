package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/pkg/browser"

	"github.com/shelfmark/shelf/internal/backend"
	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/prefs"
	"github.com/shelfmark/shelf/internal/records"
	"github.com/shelfmark/shelf/internal/state"
)

// ErrSignedOut is returned by Run when the session ended while it was open.
var ErrSignedOut = errors.New("signed out")

// Dashboard is the selection-aware view over the live collections.
type Dashboard interface {
	Snapshot() state.Snapshot
	Update(fn func(*browse.Query)) browse.Query
	SelectFolder(id string)
}

// Options configures the UI.
type Options struct {
	Context context.Context
	Store   Dashboard
	Actions backend.Store
	// Refresh reloads both collections after a local write. Optional.
	Refresh func(context.Context) error
	// Updates fires whenever a collection changes. Optional; the UI also
	// redraws on a timer.
	Updates <-chan struct{}
	// SignedOut is closed when the server rejects the session. The UI then
	// quits and Run returns ErrSignedOut. Optional.
	SignedOut    <-chan struct{}
	User         records.User
	Prefs        prefs.Prefs
	PrefsPath    string
	Logger       *log.Logger
	RefreshEvery time.Duration

	OpenURL  func(string) error // defaults to the system browser
	CopyText func(string) error // defaults to the system clipboard
}

type pane int

const (
	paneFolders pane = iota
	paneList
	paneDetail
	paneCount
)

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx          context.Context
	store        Dashboard
	actions      backend.Store
	refresh      func(context.Context) error
	updates      <-chan struct{}
	signedOut    <-chan struct{}
	user         records.User
	prefs        prefs.Prefs
	prefsPath    string
	logger       *log.Logger
	refreshEvery time.Duration
	openURL      func(string) error
	copyText     func(string) error
	keys         keyMap

	theme  Theme
	width  int
	height int
	ready  bool
	focus  pane

	snapshot state.Snapshot

	sideRow int
	listRow int

	detail    viewport.Model
	search    textinput.Model
	searching bool

	showHelp bool
	modal    Modal

	flash      string
	flashError bool
	flashAt    time.Time

	expired bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	every := opts.RefreshEvery
	if every <= 0 {
		every = DefaultUIInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	openURL := opts.OpenURL
	if openURL == nil {
		openURL = browser.OpenURL
	}
	copyText := opts.CopyText
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search title, url, tags"
	search.CharLimit = 120

	m := Model{
		ctx:          ctx,
		store:        opts.Store,
		actions:      opts.Actions,
		refresh:      opts.Refresh,
		updates:      opts.Updates,
		signedOut:    opts.SignedOut,
		user:         opts.User,
		prefs:        opts.Prefs,
		prefsPath:    prefsPath,
		logger:       logger.WithPrefix("ui"),
		refreshEvery: every,
		openURL:      openURL,
		copyText:     copyText,
		keys:         DefaultKeyMap(),
		theme:        GetTheme(opts.Prefs.Theme),
		focus:        paneList,
		search:       search,
	}
	if m.store != nil {
		m.snapshot = m.store.Snapshot()
		m.sideRow = m.selectedSidebarRow()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.refreshEvery)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.updates != nil {
		cmds = append(cmds, waitForUpdate(m.updates))
	}
	if m.signedOut != nil {
		cmds = append(cmds, waitForSignOut(m.signedOut))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.detail = viewport.New(0, 0)
		}
		m.ready = true
		m.resizeDetail()
		m.updateDetailViewport()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.refreshEvery))
		return m, tea.Batch(cmds...)

	case updateMsg:
		if !msg.ok || m.store == nil {
			return m, nil
		}
		return m, tea.Batch(fetchSnapshotCmd(m.store), waitForUpdate(m.updates))

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case signedOutMsg:
		m.expired = true
		m.logger.Warn("session rejected, leaving dashboard")
		return m, tea.Quit

	case actionDoneMsg:
		if msg.err != nil {
			m.logger.Error(msg.verb+" failed", "err", msg.err)
			m.setFlash(msg.verb+": "+msg.err.Error(), true)
		} else if msg.verb != "" {
			m.setFlash(msg.verb, false)
		}
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if rows := len(m.sidebarRows()); m.sideRow >= rows {
		m.sideRow = max(rows-1, 0)
	}
	if m.listRow >= len(snap.Bookmarks) {
		m.listRow = max(len(snap.Bookmarks)-1, 0)
	}
	m.updateDetailViewport()
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = strings.TrimSpace(text)
	m.flashError = isErr
	m.flashAt = time.Now()
}

// selectedBookmark returns the highlighted bookmark, if any.
func (m Model) selectedBookmark() (records.Bookmark, bool) {
	items := m.snapshot.Bookmarks
	if m.listRow < 0 || m.listRow >= len(items) {
		return records.Bookmark{}, false
	}
	return items[m.listRow], true
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderPanes())
	return b.String()
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type updateMsg struct{ ok bool }

type signedOutMsg struct{}

type actionDoneMsg struct {
	verb string
	err  error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store Dashboard) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		_, ok := <-ch
		return updateMsg{ok: ok}
	}
}

func waitForSignOut(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return signedOutMsg{}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.expired {
		return ErrSignedOut
	}
	return nil
}
