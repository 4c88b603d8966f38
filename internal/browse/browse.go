// Package browse filters, sorts and summarises bookmark snapshots. All
// functions are pure and never modify their inputs.
package browse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shelfmark/shelf/internal/records"
)

// SortField selects the bookmark ordering.
type SortField string

const (
	SortCreated SortField = "created_at"
	SortTitle   SortField = "title"
	SortURL     SortField = "url"
	SortVisits  SortField = "visit_count"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSort validates a sort field name; "" selects SortCreated.
func ParseSort(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortCreated, nil
	case SortCreated, SortTitle, SortURL, SortVisits:
		return f, nil
	case "created", "date":
		return SortCreated, nil
	case "visits":
		return SortVisits, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", s)
	}
}

// ParseOrder validates a sort order; "" selects Desc.
func ParseOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// Query describes which bookmarks to show and how to order them.
type Query struct {
	// FolderID limits results to one folder; empty means all folders.
	FolderID string
	// Favorites limits results to favorites.
	Favorites bool
	// Archived shows only archived bookmarks. Archived bookmarks are hidden
	// otherwise.
	Archived bool
	// Search matches case-insensitively against title, url, description and
	// tags.
	Search string
	// Tag requires an exact tag.
	Tag   string
	Sort  SortField
	Order SortOrder
}

// Apply returns the bookmarks matching q in q's order.
func Apply(bookmarks []records.Bookmark, q Query) []records.Bookmark {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]records.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.IsArchived != q.Archived {
			continue
		}
		if q.FolderID != "" && !b.InFolder(q.FolderID) {
			continue
		}
		if q.Favorites && !b.IsFavorite {
			continue
		}
		if q.Tag != "" && !b.HasTag(q.Tag) {
			continue
		}
		if needle != "" && !Matches(b, needle) {
			continue
		}
		out = append(out, b)
	}
	Sort(out, q.Sort, q.Order)
	return out
}

// Matches reports whether the lower-cased needle occurs in any searchable
// field of b.
func Matches(b records.Bookmark, needle string) bool {
	if strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.URL), needle) {
		return true
	}
	if b.Description != nil && strings.Contains(strings.ToLower(*b.Description), needle) {
		return true
	}
	for _, t := range b.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Sort orders bookmarks in place. Ties keep their relative order.
func Sort(bookmarks []records.Bookmark, field SortField, order SortOrder) {
	if field == "" {
		field = SortCreated
	}
	less := func(a, b records.Bookmark) int {
		switch field {
		case SortTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortURL:
			return strings.Compare(strings.ToLower(a.URL), strings.ToLower(b.URL))
		case SortVisits:
			return a.VisitCount - b.VisitCount
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(bookmarks, func(i, j int) bool {
		c := less(bookmarks[i], bookmarks[j])
		if order == Asc {
			return c < 0
		}
		return c > 0
	})
}

// Tags returns each distinct tag with its usage count, most used first and
// alphabetical among equals.
func Tags(bookmarks []records.Bookmark) []records.Tag {
	counts := map[string]int{}
	for _, b := range bookmarks {
		for _, t := range b.Tags {
			if t = strings.TrimSpace(t); t != "" {
				counts[t]++
			}
		}
	}
	out := make([]records.Tag, 0, len(counts))
	for name, n := range counts {
		out = append(out, records.Tag{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FolderCounts returns the number of unarchived bookmarks per folder id.
func FolderCounts(bookmarks []records.Bookmark) map[string]int {
	counts := map[string]int{}
	for _, b := range bookmarks {
		if b.FolderID != nil && !b.IsArchived {
			counts[*b.FolderID]++
		}
	}
	return counts
}

// ParseTags splits a comma separated tag list into lowercase tags, trimming
// blanks and dropping duplicates.
func ParseTags(s string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		t := strings.ToLower(strings.TrimSpace(part))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
