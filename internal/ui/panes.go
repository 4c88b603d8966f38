package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shelfmark/shelf/internal/records"
)

type rowKind int

const (
	rowAll rowKind = iota
	rowFavorites
	rowArchive
	rowFolder
)

// sidebarRow is one selectable entry in the folders pane.
type sidebarRow struct {
	kind     rowKind
	folderID string
	label    string
	count    int
}

func (m Model) sidebarRows() []sidebarRow {
	st := m.snapshot.Stats
	rows := []sidebarRow{
		{kind: rowAll, label: "All Bookmarks", count: st.Total - st.Archived},
		{kind: rowFavorites, label: "Favorites", count: st.Favorites},
		{kind: rowArchive, label: "Archive", count: st.Archived},
	}
	for _, f := range m.snapshot.Folders {
		rows = append(rows, sidebarRow{
			kind:     rowFolder,
			folderID: f.ID,
			label:    f.Name,
			count:    m.snapshot.FolderCounts[f.ID],
		})
	}
	return rows
}

// selectedSidebarRow returns the index of the row matching the current query.
func (m Model) selectedSidebarRow() int {
	q := m.snapshot.Query
	for i, row := range m.sidebarRows() {
		switch {
		case row.kind == rowFavorites && q.Favorites,
			row.kind == rowArchive && q.Archived,
			row.kind == rowFolder && q.FolderID == row.folderID && !q.Favorites && !q.Archived:
			return i
		}
	}
	return 0
}

// paneWidths splits the terminal between the sidebar, the list and the
// detail pane. Detail is hidden on narrow terminals.
func (m Model) paneWidths() (side, list, detail int) {
	side = min(max(m.width*20/100, SidebarMinWidth), SidebarMaxWidth)
	rest := m.width - side
	if m.width < LayoutCompactWidth {
		return side, rest, 0
	}
	if m.width >= LayoutExtraWideWidth {
		list = rest * 45 / 100
	} else {
		list = rest * 55 / 100
	}
	return side, list, rest - list
}

func (m Model) contentHeight() int {
	return max(m.height-2, 3)
}

// listHeight is the number of rows visible in the bookmark list.
func (m Model) listHeight() int {
	return max(m.contentHeight()-2, 1)
}

func (m *Model) resizeDetail() {
	_, _, detail := m.paneWidths()
	m.detail.Width = max(detail-4, 0)
	m.detail.Height = max(m.contentHeight()-2, 0)
}

func (m *Model) updateDetailViewport() {
	if !m.ready {
		return
	}
	b, ok := m.selectedBookmark()
	if !ok {
		m.detail.SetContent(m.theme.Styles().MutedText.Render("Select a bookmark"))
		return
	}
	m.detail.SetContent(m.renderDetailContent(b, m.detail.Width))
	m.detail.GotoTop()
}

// renderPanes renders folders, list and detail side by side.
func (m Model) renderPanes() string {
	height := m.contentHeight()
	sideW, listW, detailW := m.paneWidths()

	panes := []string{
		m.renderTitledBox("Folders", m.renderSidebar(sideW-2), sideW, height, m.focus == paneFolders),
		m.renderTitledBox(m.listTitle(), m.renderList(listW-2), listW, height, m.focus == paneList),
	}
	if detailW > 0 {
		panes = append(panes, m.renderTitledBox("Details", m.detail.View(), detailW, height, m.focus == paneDetail))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panes...)
}

func (m Model) paneBg(p pane) string {
	if m.focus == p {
		return m.theme.FocusBg
	}
	return m.theme.SurfaceAlt
}

func (m Model) renderSidebar(width int) string {
	bgColor := m.paneBg(paneFolders)
	styles := m.theme.Styles()
	var lines []string
	for i, row := range m.sidebarRows() {
		count := fmt.Sprintf("%d", row.count)
		label := truncate(row.label, max(width-len(count)-2, 1))
		line := padRight(" "+label, width-len(count)-1) + count
		style := styles.Text.Background(lipgloss.Color(bgColor))
		switch {
		case i == m.sideRow:
			style = styles.Selected
		case row.kind != rowFolder:
			style = styles.AccentText.Background(lipgloss.Color(bgColor))
		}
		lines = append(lines, style.Width(width).Render(line))
		if row.kind == rowArchive && len(m.snapshot.Folders) > 0 {
			lines = append(lines, styles.FaintText.Background(lipgloss.Color(bgColor)).Width(width).Render(strings.Repeat("─", width)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) listTitle() string {
	title := m.snapshot.Title
	if title == "" {
		title = "Bookmarks"
	}
	return fmt.Sprintf("%s (%d)", title, len(m.snapshot.Bookmarks))
}

// renderList renders the visible window of bookmarks.
func (m Model) renderList(width int) string {
	styles := m.theme.Styles()
	items := m.snapshot.Bookmarks
	if len(items) == 0 {
		msg := "No bookmarks"
		switch {
		case m.snapshot.Loading:
			msg = "Loading bookmarks..."
		case m.snapshot.Query.Search != "" || m.snapshot.Query.Tag != "":
			msg = "Nothing matches"
		}
		return styles.MutedText.Render(" " + msg)
	}

	visible := m.listHeight()
	start := 0
	if m.listRow >= visible {
		start = m.listRow - visible + 1
	}
	end := min(start+visible, len(items))

	bgColor := m.paneBg(paneList)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		if i == m.listRow {
			lines = append(lines, lipgloss.NewStyle().
				Background(lipgloss.Color(m.theme.SelectionBg)).
				Width(width).
				Render(m.formatRow(items[i], width, m.theme.SelectionBg, true)))
			continue
		}
		lines = append(lines, lipgloss.NewStyle().
			Background(lipgloss.Color(bgColor)).
			Width(width).
			Render(m.formatRow(items[i], width, bgColor, false)))
	}
	return strings.Join(lines, "\n")
}

// formatRow renders one bookmark as "★ Title  domain".
func (m Model) formatRow(b records.Bookmark, width int, bgColor string, selected bool) string {
	bg := NewBgStyle(bgColor)
	styles := m.theme.Styles()
	textStyle, mutedStyle := styles.Text, styles.MutedText
	if selected {
		textStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		mutedStyle = textStyle
	}

	marker := " "
	markerStyle := mutedStyle
	if b.IsFavorite {
		marker = "★"
		markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColors["favorite"]))
	}

	domain := records.Domain(b.URL)
	titleWidth := width - 3
	if width >= 40 {
		titleWidth = width - 3 - min(len(domain), width/3) - 2
	}
	title := padRight(truncate(b.Title, titleWidth), titleWidth)

	line := bg.Space() + bg.Render(marker, markerStyle) + bg.Space() + bg.Render(title, textStyle)
	if width >= 40 {
		line += bg.Spaces(2) + bg.Render(truncate(domain, width/3), mutedStyle)
	}
	return line
}

func (m Model) renderDetailContent(b records.Bookmark, width int) string {
	styles := m.theme.Styles()
	labelStyle := styles.MutedText.Width(10)
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		lines = append(lines, labelStyle.Render(label)+styles.Text.Render(truncate(value, max(width-10, 8))))
	}

	lines = append(lines, styles.Text.Bold(true).Width(width).Render(b.Title))
	var badges []string
	if b.IsFavorite {
		badges = append(badges, styles.StatusStyle("favorite").Render("FAVORITE"))
	}
	if b.IsArchived {
		badges = append(badges, styles.StatusStyle("archived").Render("ARCHIVED"))
	}
	if len(badges) > 0 {
		lines = append(lines, strings.Join(badges, " "))
	}
	lines = append(lines, "")

	add("URL", b.URL)
	add("Domain", records.Domain(b.URL))
	add("Folder", m.folderName(b.FolderID))
	if len(b.Tags) > 0 {
		add("Tags", "#"+strings.Join(b.Tags, " #"))
	}
	add("Added", b.CreatedAt.Local().Format("2006-01-02 15:04"))
	add("Visits", fmt.Sprintf("%d", b.VisitCount))
	if b.LastVisited != nil {
		add("Visited", humanizeSince(*b.LastVisited))
	}
	if b.Description != nil && strings.TrimSpace(*b.Description) != "" {
		lines = append(lines, "", styles.Text.Width(width).Render(strings.TrimSpace(*b.Description)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) folderName(id *string) string {
	if id == nil || *id == "" {
		return ""
	}
	for _, f := range m.snapshot.Folders {
		if f.ID == *id {
			return f.Name
		}
	}
	return ""
}

// renderTitledBox renders content in a box with the title embedded in the top border.
// When focused is true, uses BorderFocus color and FocusBg background.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	var borderColorStr, bgColorStr string
	if focused {
		borderColorStr = m.theme.BorderFocus
		bgColorStr = m.theme.FocusBg
	} else {
		borderColorStr = m.theme.Border
		bgColorStr = m.theme.SurfaceAlt
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	title = truncate(title, max(innerWidth-4, 0))
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)
	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColorStr))
	contentLines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	rows := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		rows = append(rows, bg.Render("│", borderStyle)+contentStyle.Render(line)+bg.Render("│", borderStyle))
	}
	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + bottomBorder
}
