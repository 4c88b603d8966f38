package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/livesync"
)

// stateKey maps a connection state to its StatusColors key.
func stateKey(s livesync.ConnState) string {
	return strings.ToLower(s.String())
}

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("shelf", styles.Logo)}
	parts = append(parts, m.connectionParts(styles, bg, compact)...)

	if !m.snapshot.Loading {
		st := m.snapshot.Stats
		counts := bg.Render("Bookmarks:", styles.MutedText) + bg.Space() +
			bg.Render(fmt.Sprintf("%d", st.Total-st.Archived), styles.Text)
		if !compact {
			counts += bg.Spaces(2) + bg.Render("Favorites:", styles.MutedText) + bg.Space() +
				bg.Render(fmt.Sprintf("%d", st.Favorites), styles.Text) +
				bg.Spaces(2) + bg.Render("Folders:", styles.MutedText) + bg.Space() +
				bg.Render(fmt.Sprintf("%d", st.Folders), styles.Text)
		}
		parts = append(parts, counts)
	}

	if ts := m.formatTimestamp(); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if m.flash != "" && time.Since(m.flashAt) < FlashDuration {
		style := styles.SuccessText
		if m.flashError {
			style = styles.WarningText.Bold(true)
		}
		parts = append(parts, bg.Render(truncate(m.flash, 60), style))
	}

	if err := m.snapshot.LastError; err != nil && !m.snapshot.IsOffline() {
		limit := 60
		if compact {
			limit = 30
		}
		parts = append(parts,
			bg.Render("ERROR", styles.DangerText)+bg.Space()+
				bg.Render(truncate(err.Error(), limit), styles.DangerText))
	}

	if m.user.Email != "" && !compact {
		parts = append(parts, bg.Render(truncateMiddle(m.user.Email, 32), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// connectionParts describes both channels. Compact mode shows only the
// weaker of the two.
func (m Model) connectionParts(styles Styles, bg BgStyle, compact bool) []string {
	snap := m.snapshot
	if snap.IsOffline() {
		return []string{
			bg.Render("OFFLINE", styles.DangerText) + bg.Space() +
				bg.Render(classifyConnectionError(snap.LastError), styles.DangerText),
			bg.Render("retrying...", styles.WarningText.Bold(true)),
		}
	}
	if snap.Loading {
		return []string{bg.Render("Connecting...", styles.WarningText.Bold(true))}
	}

	badge := func(s livesync.ConnState) string {
		return styles.StatusStyle(stateKey(s)).Render(stateKey(s))
	}

	var parts []string
	if compact {
		weakest := snap.BookmarkState
		if snap.FolderState != livesync.Live {
			weakest = snap.FolderState
		}
		parts = append(parts, badge(weakest))
	} else {
		parts = append(parts,
			bg.Render("folders", styles.MutedText)+bg.Space()+badge(snap.FolderState)+bg.Spaces(2)+
				bg.Render("bookmarks", styles.MutedText)+bg.Space()+badge(snap.BookmarkState))
	}
	if snap.Polling {
		parts = append(parts, bg.Render("POLLING", styles.WarningText.Bold(true)))
	}
	return parts
}

// formatTimestamp formats the last reload time with relative indicator.
func (m Model) formatTimestamp() string {
	last := m.snapshot.LastUpdated
	if last.IsZero() {
		return ""
	}
	return last.Local().Format("15:04:05") + " (" + humanizeSince(last) + ")"
}

// classifyConnectionError returns a short description of the connection error.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "server unreachable"
	case strings.Contains(msg, "no such host"):
		return "host not found"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "401"), strings.Contains(msg, "JWT"):
		return "session expired"
	default:
		return "error"
	}
}

var sortLabels = map[browse.SortField]string{
	browse.SortCreated: "Newest",
	browse.SortTitle:   "Title",
	browse.SortURL:     "URL",
	browse.SortVisits:  "Visits",
}

func sortLabel(q browse.Query) string {
	field := q.Sort
	if field == "" {
		field = browse.SortCreated
	}
	label := sortLabels[field]
	if q.Order == browse.Asc {
		label += "↑"
	} else {
		label += "↓"
	}
	return label
}

// renderCommandBar renders the command hints bar, or the search input while
// searching.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	if m.searching {
		hint := bg.Render("enter", styles.AccentText) + bg.Sep(":") + bg.Render("keep", styles.MutedText) +
			bg.Spaces(2) + bg.Render("esc", styles.AccentText) + bg.Sep(":") + bg.Render("clear", styles.MutedText)
		return styles.Header.Width(m.width).Render(m.search.View() + bg.Spaces(2) + hint)
	}

	type cmd struct{ key, desc string }
	var commands []cmd
	switch m.focus {
	case paneFolders:
		commands = []cmd{
			{"j/k", "Select"},
			{"enter", "List"},
			{"F", "Favorites"},
			{"A", "Archive"},
			{"Tab", "Focus"},
			{"?", "More"},
		}
	default:
		archive := "Archive"
		if m.snapshot.Query.Archived {
			archive = "Restore"
		}
		commands = []cmd{
			{"enter", "Open"},
			{"y", "Copy"},
			{"f", "Fav"},
			{"a", archive},
			{"d", "Delete"},
			{"/", "Search"},
			{"s", sortLabel(m.snapshot.Query)},
			{"t", "Tag"},
			{"Tab", "Focus"},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	if q := m.snapshot.Query; q.Search != "" || q.Tag != "" {
		filter := ""
		if q.Tag != "" {
			filter = "#" + q.Tag
		}
		if q.Search != "" {
			filter = strings.TrimSpace(filter + " /" + truncate(q.Search, 18))
		}
		segments = append(segments, bg.Render(filter, styles.AccentText))
	}

	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

// statusLine is a plain rendering of the connection state.
func (m Model) statusLine() string {
	snap := m.snapshot
	line := fmt.Sprintf("folders %s, bookmarks %s", stateKey(snap.FolderState), stateKey(snap.BookmarkState))
	if snap.Polling {
		line += ", polling"
	}
	return line
}
