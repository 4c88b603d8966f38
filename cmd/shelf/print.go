package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/records"
)

const maxTitleWidth = 48

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func printBookmarks(w io.Writer, bookmarks []records.Bookmark, folders []records.Folder) {
	if len(bookmarks) == 0 {
		fmt.Fprintln(w, "No bookmarks found.")
		return
	}
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	t := newTable("ID", "", "TITLE", "DOMAIN", "FOLDER", "TAGS")
	for _, b := range bookmarks {
		folder := ""
		if b.FolderID != nil {
			folder = names[*b.FolderID]
		}
		t.Row(
			shortID(b.ID),
			marker(b),
			clip(b.Title, maxTitleWidth),
			records.Domain(b.URL),
			folder,
			strings.Join(b.Tags, ", "),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("%d bookmark(s)", len(bookmarks))))
}

func printFolders(w io.Writer, folders []records.Folder, counts map[string]int) {
	if len(folders) == 0 {
		fmt.Fprintln(w, "No folders yet. Create one with 'shelf folder add <name>'.")
		return
	}
	t := newTable("ID", "NAME", "BOOKMARKS", "COLOR")
	for _, f := range folders {
		t.Row(shortID(f.ID), f.Name, fmt.Sprintf("%d", counts[f.ID]), f.Color)
	}
	fmt.Fprintln(w, t.Render())
}

func printStats(w io.Writer, st browse.Stats) {
	fmt.Fprintf(w, "Bookmarks   %d (%d archived)\n", st.Total, st.Archived)
	fmt.Fprintf(w, "Favorites   %d\n", st.Favorites)
	fmt.Fprintf(w, "Folders     %d\n", st.Folders)
	fmt.Fprintf(w, "This week   %d added\n", st.AddedThisWeek)

	if len(st.MostVisited) > 0 {
		fmt.Fprintln(w, "\nMost visited")
		for _, b := range st.MostVisited {
			fmt.Fprintf(w, "  %4d  %s\n", b.VisitCount, clip(b.Title, maxTitleWidth))
		}
	}
	if len(st.RecentlyVisited) > 0 {
		fmt.Fprintln(w, "\nRecently visited")
		for _, b := range st.RecentlyVisited {
			fmt.Fprintf(w, "  %s  %s\n", b.LastVisited.Local().Format("2006-01-02"), clip(b.Title, maxTitleWidth))
		}
	}
	if len(st.Tags) > 0 {
		fmt.Fprintln(w, "\nTags")
		for _, tag := range st.Tags {
			fmt.Fprintf(w, "  %4d  #%s\n", tag.Count, tag.Name)
		}
	}
}

func marker(b records.Bookmark) string {
	switch {
	case b.IsArchived:
		return "▪"
	case b.IsFavorite:
		return "★"
	default:
		return ""
	}
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
