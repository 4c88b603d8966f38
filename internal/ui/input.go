package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/prefs"
)

var sortCycle = []browse.SortField{browse.SortCreated, browse.SortTitle, browse.SortURL, browse.SortVisits}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.modal != nil {
		next, cmd, done := m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		} else {
			m.modal = next
		}
		return m, cmd
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		m.focus = (m.focus + 1) % paneCount
		return m, nil
	case key.Matches(msg, m.keys.ShiftTab):
		m.focus = (m.focus + paneCount - 1) % paneCount
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.reloadCmd()
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.snapshot.Query.Search)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Escape):
		m.updateQuery(func(q *browse.Query) {
			q.Search = ""
			q.Tag = ""
		})
		return m, nil
	case key.Matches(msg, m.keys.Favorites):
		m.toggleView(rowFavorites)
		return m, nil
	case key.Matches(msg, m.keys.Archive):
		m.toggleView(rowArchive)
		return m, nil
	case key.Matches(msg, m.keys.CycleTag):
		m.cycleTag()
		return m, nil
	case key.Matches(msg, m.keys.CycleSort):
		m.cycleSort()
		return m, nil
	case key.Matches(msg, m.keys.FlipOrder):
		m.flipOrder()
		return m, nil
	}

	switch m.focus {
	case paneFolders:
		return m.handleFoldersKey(msg)
	case paneDetail:
		if cmd, ok := m.handleBookmarkKey(msg); ok {
			return m, cmd
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	default:
		return m.handleListKey(msg)
	}
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.updateQuery(func(q *browse.Query) { q.Search = "" })
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	value := m.search.Value()
	m.updateQuery(func(q *browse.Query) { q.Search = value })
	return m, cmd
}

func (m Model) handleFoldersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.sidebarRows()
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.sideRow < len(rows)-1 {
			m.sideRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.sideRow > 0 {
			m.sideRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.sideRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.sideRow = len(rows) - 1
	case msg.Type == tea.KeyEnter:
		m.focus = paneList
		return m, nil
	default:
		return m, nil
	}
	if m.sideRow >= 0 && m.sideRow < len(rows) {
		m.selectRow(rows[m.sideRow])
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.handleBookmarkKey(msg); ok {
		return m, cmd
	}

	count := len(m.snapshot.Bookmarks)
	if count == 0 {
		return m, nil
	}
	page := max(m.listHeight()-1, 1)
	switch {
	case key.Matches(msg, m.keys.Down):
		m.listRow = min(m.listRow+1, count-1)
	case key.Matches(msg, m.keys.Up):
		m.listRow = max(m.listRow-1, 0)
	case key.Matches(msg, m.keys.Top):
		m.listRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.listRow = count - 1
	case key.Matches(msg, m.keys.PageDown):
		m.listRow = min(m.listRow+page, count-1)
	case key.Matches(msg, m.keys.PageUp):
		m.listRow = max(m.listRow-page, 0)
	default:
		return m, nil
	}
	m.updateDetailViewport()
	return m, nil
}

// handleBookmarkKey runs the actions that apply to the highlighted bookmark.
func (m *Model) handleBookmarkKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	b, ok := m.selectedBookmark()
	if !ok {
		return nil, false
	}
	switch {
	case key.Matches(msg, m.keys.Open):
		return m.openCmd(b), true
	case key.Matches(msg, m.keys.Copy):
		return m.copyCmd(b), true
	case key.Matches(msg, m.keys.Favorite):
		return m.favoriteCmd(b), true
	case key.Matches(msg, m.keys.Archived):
		return m.archiveCmd(b), true
	case key.Matches(msg, m.keys.Delete):
		m.modal = newConfirmModal("Delete bookmark?", truncate(b.Title, 48), m.deleteCmd(b))
		return nil, true
	}
	return nil, false
}

func (m *Model) updateQuery(fn func(*browse.Query)) {
	if m.store == nil {
		return
	}
	m.store.Update(fn)
	m.listRow = 0
	m.applySnapshot(m.store.Snapshot())
}

// toggleView switches to the favorites or archive view, or back to all
// bookmarks when it is already showing.
func (m *Model) toggleView(kind rowKind) {
	q := m.snapshot.Query
	active := (kind == rowFavorites && q.Favorites) || (kind == rowArchive && q.Archived)
	if active {
		kind = rowAll
	}
	m.selectRow(sidebarRow{kind: kind})
	m.sideRow = m.selectedSidebarRow()
}

func (m *Model) selectRow(row sidebarRow) {
	m.updateQuery(func(q *browse.Query) {
		q.FolderID = ""
		q.Favorites = false
		q.Archived = false
		switch row.kind {
		case rowFavorites:
			q.Favorites = true
		case rowArchive:
			q.Archived = true
		case rowFolder:
			q.FolderID = row.folderID
		}
	})
}

func (m *Model) cycleTag() {
	tags := m.snapshot.Tags
	if len(tags) == 0 {
		return
	}
	current := m.snapshot.Query.Tag
	next := tags[0].Name
	for i, t := range tags {
		if strings.EqualFold(t.Name, current) {
			if i == len(tags)-1 {
				next = ""
			} else {
				next = tags[i+1].Name
			}
			break
		}
	}
	m.updateQuery(func(q *browse.Query) { q.Tag = next })
}

func (m *Model) cycleSort() {
	current := m.snapshot.Query.Sort
	if current == "" {
		current = browse.SortCreated
	}
	next := sortCycle[0]
	for i, f := range sortCycle {
		if f == current {
			next = sortCycle[(i+1)%len(sortCycle)]
			break
		}
	}
	m.updateQuery(func(q *browse.Query) { q.Sort = next })
	m.prefs.SortBy = string(next)
	m.savePrefs()
}

func (m *Model) flipOrder() {
	next := browse.Desc
	if order := m.snapshot.Query.Order; order == browse.Desc || order == "" {
		next = browse.Asc
	}
	m.updateQuery(func(q *browse.Query) { q.Order = next })
	m.prefs.SortOrder = string(next)
	m.savePrefs()
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs", "err", err)
		m.setFlash("could not save preferences", true)
	}
}
