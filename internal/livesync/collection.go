package livesync

import (
	"sort"
	"strings"

	"github.com/shelfmark/shelf/internal/records"
)

// Record is the view the sync routine has of a row.
type Record interface {
	RecordID() string
	RecordOwner() string
}

// Collection describes one synced table.
type Collection[T Record] struct {
	// Table is the backing table the feed is scoped to.
	Table string
	// Channel is the feed channel name.
	Channel string
	// Required lists the fields an insert payload must carry.
	Required []string
	// Less orders the local collection. When nil, inserts are prepended and
	// reloads keep the server order.
	Less func(a, b T) bool
}

// FolderCollection syncs folders ordered by name.
func FolderCollection() Collection[records.Folder] {
	return Collection[records.Folder]{
		Table:    "folders",
		Channel:  "db-folders",
		Required: records.FolderRequiredFields,
		Less: func(a, b records.Folder) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		},
	}
}

// BookmarkCollection syncs bookmarks newest first. New bookmarks always land at
// the newest position, so inserts prepend without re-sorting.
func BookmarkCollection() Collection[records.Bookmark] {
	return Collection[records.Bookmark]{
		Table:    "bookmarks",
		Channel:  "db-bookmarks",
		Required: records.BookmarkRequiredFields,
	}
}

func (c Collection[T]) indexOf(items []T, id string) int {
	for i, item := range items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

func (c Collection[T]) sorted(items []T) []T {
	if c.Less != nil {
		sort.SliceStable(items, func(i, j int) bool { return c.Less(items[i], items[j]) })
	}
	return items
}

func (c Collection[T]) place(items []T, rec T) []T {
	if c.Less == nil {
		out := make([]T, 0, len(items)+1)
		out = append(out, rec)
		return append(out, items...)
	}
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	return c.sorted(append(out, rec))
}

// merge applies ch to items and returns the resulting collection. The input
// slice is never modified. An update for an absent id is upserted; an update
// for a present id replaces the row in place without re-sorting.
func (c Collection[T]) merge(items []T, ch Change[T]) ([]T, bool) {
	idx := c.indexOf(items, ch.ID)
	switch ch.Kind {
	case Insert:
		if idx >= 0 {
			return items, false
		}
		return c.place(items, ch.Record), true
	case Update:
		if idx < 0 {
			return c.place(items, ch.Record), true
		}
		out := make([]T, len(items))
		copy(out, items)
		out[idx] = ch.Record
		return out, true
	case Delete:
		if idx < 0 {
			return items, false
		}
		out := make([]T, 0, len(items)-1)
		out = append(out, items[:idx]...)
		return append(out, items[idx+1:]...), true
	}
	return items, false
}
