package browse

import (
	"sort"
	"time"

	"github.com/shelfmark/shelf/internal/records"
)

const (
	topN       = 5
	recentDays = 7
)

// Stats summarises a user's library.
type Stats struct {
	Total           int
	Favorites       int
	Archived        int
	Folders         int
	AddedThisWeek   int
	MostVisited     []records.Bookmark
	RecentlyVisited []records.Bookmark
	Tags            []records.Tag
}

// ComputeStats summarises bookmarks and folders as of now.
func ComputeStats(bookmarks []records.Bookmark, folders []records.Folder, now time.Time) Stats {
	st := Stats{
		Total:   len(bookmarks),
		Folders: len(folders),
		Tags:    Tags(bookmarks),
	}
	weekAgo := now.AddDate(0, 0, -recentDays)

	var visited, recent []records.Bookmark
	for _, b := range bookmarks {
		if b.IsFavorite {
			st.Favorites++
		}
		if b.IsArchived {
			st.Archived++
		}
		if b.CreatedAt.After(weekAgo) {
			st.AddedThisWeek++
		}
		if b.VisitCount > 0 {
			visited = append(visited, b)
		}
		if b.LastVisited != nil {
			recent = append(recent, b)
		}
	}

	sort.SliceStable(visited, func(i, j int) bool { return visited[i].VisitCount > visited[j].VisitCount })
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].LastVisited.After(*recent[j].LastVisited) })
	st.MostVisited = head(visited, topN)
	st.RecentlyVisited = head(recent, topN)
	return st
}

func head(items []records.Bookmark, n int) []records.Bookmark {
	if len(items) > n {
		return items[:n]
	}
	return items
}
