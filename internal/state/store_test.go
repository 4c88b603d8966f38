package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/records"
)

type fakeSource[T livesync.Record] struct {
	mu   sync.Mutex
	view livesync.View[T]
}

func (f *fakeSource[T]) Snapshot() livesync.View[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeSource[T]) set(v livesync.View[T]) {
	f.mu.Lock()
	f.view = v
	f.mu.Unlock()
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func fixture() (*fakeSource[records.Folder], *fakeSource[records.Bookmark], *Store) {
	folders := &fakeSource[records.Folder]{view: livesync.View[records.Folder]{
		Items:      []records.Folder{{ID: "f1", Name: "Reading"}, {ID: "f2", Name: "Tools"}},
		State:      livesync.Live,
		LastReload: t0,
	}}
	bookmarks := &fakeSource[records.Bookmark]{view: livesync.View[records.Bookmark]{
		Items: []records.Bookmark{
			{ID: "b1", Title: "Go", URL: "https://go.dev", FolderID: strPtr("f1"), Tags: []string{"go"}, CreatedAt: t0},
			{ID: "b2", Title: "Rust", URL: "https://rust-lang.org", IsFavorite: true, CreatedAt: t0.Add(-time.Hour)},
			{ID: "b3", Title: "Old", URL: "https://old.example", IsArchived: true, FolderID: strPtr("f1"), CreatedAt: t0.Add(-2 * time.Hour)},
		},
		State:      livesync.Live,
		LastReload: t0.Add(time.Second),
	}}
	s := NewStore(folders, bookmarks, browse.Query{Sort: browse.SortCreated, Order: browse.Desc})
	s.now = func() time.Time { return t0.Add(time.Minute) }
	return folders, bookmarks, s
}

func ids(bms []records.Bookmark) []string {
	out := make([]string, 0, len(bms))
	for _, b := range bms {
		out = append(out, b.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStore_SnapshotAllBookmarks(t *testing.T) {
	_, _, s := fixture()

	snap := s.Snapshot()
	if got := ids(snap.Bookmarks); !equal(got, []string{"b1", "b2"}) {
		t.Fatalf("Bookmarks = %v, want [b1 b2] (archived hidden)", got)
	}
	if snap.Title != "All Bookmarks" {
		t.Fatalf("Title = %q", snap.Title)
	}
	if snap.FolderCounts["f1"] != 1 {
		t.Fatalf("FolderCounts[f1] = %d, want 1", snap.FolderCounts["f1"])
	}
	if snap.Stats.Total != 3 || snap.Stats.Archived != 1 || snap.Stats.Folders != 2 {
		t.Fatalf("Stats = %+v", snap.Stats)
	}
	if !snap.Live() || snap.Polling || snap.Loading {
		t.Fatalf("connection flags = live:%v polling:%v loading:%v", snap.Live(), snap.Polling, snap.Loading)
	}
	if !snap.LastUpdated.Equal(t0.Add(time.Second)) {
		t.Fatalf("LastUpdated = %v", snap.LastUpdated)
	}
}

func TestStore_SelectFolderAndViews(t *testing.T) {
	_, _, s := fixture()

	s.SelectFolder("f1")
	snap := s.Snapshot()
	if got := ids(snap.Bookmarks); !equal(got, []string{"b1"}) {
		t.Fatalf("folder view = %v, want [b1]", got)
	}
	if snap.Title != "Reading" {
		t.Fatalf("Title = %q, want Reading", snap.Title)
	}

	s.Update(func(q *browse.Query) { q.Archived = true })
	snap = s.Snapshot()
	if got := ids(snap.Bookmarks); !equal(got, []string{"b3"}) {
		t.Fatalf("archive view = %v, want [b3]", got)
	}

	s.SelectFolder("")
	s.Update(func(q *browse.Query) { q.Favorites = true; q.Tag = "x"; q.Search = "rust" })
	snap = s.Snapshot()
	if snap.Title != "Favorites #x / rust" {
		t.Fatalf("Title = %q", snap.Title)
	}
}

func TestStore_VanishedFolderResetsSelection(t *testing.T) {
	folders, _, s := fixture()
	s.SelectFolder("f2")

	folders.set(livesync.View[records.Folder]{
		Items:      []records.Folder{{ID: "f1", Name: "Reading"}},
		State:      livesync.Live,
		LastReload: t0,
	})

	snap := s.Snapshot()
	if snap.Query.FolderID != "" {
		t.Fatalf("FolderID = %q, want reset", snap.Query.FolderID)
	}
	if s.Query().FolderID != "" {
		t.Fatalf("stored FolderID = %q, want reset", s.Query().FolderID)
	}
}

func TestStore_SelectionKeptBeforeFirstReload(t *testing.T) {
	folders, _, s := fixture()
	folders.set(livesync.View[records.Folder]{State: livesync.Connecting})
	s.SelectFolder("f2")

	if got := s.Snapshot().Query.FolderID; got != "f2" {
		t.Fatalf("FolderID = %q, want f2 kept", got)
	}
}

func TestStore_LoadingAndOffline(t *testing.T) {
	folders, bookmarks, s := fixture()
	folders.set(livesync.View[records.Folder]{State: livesync.Connecting})
	bookmarks.set(livesync.View[records.Bookmark]{State: livesync.Connecting})

	if !s.Snapshot().Loading {
		t.Fatalf("Loading = false, want true before any data")
	}

	boom := errors.New("boom")
	folders.set(livesync.View[records.Folder]{State: livesync.Degraded, Polling: true})
	bookmarks.set(livesync.View[records.Bookmark]{State: livesync.Degraded, Polling: true, LastError: boom})

	snap := s.Snapshot()
	if !snap.Polling || !snap.IsOffline() {
		t.Fatalf("polling=%v offline=%v, want both", snap.Polling, snap.IsOffline())
	}
	if !errors.Is(snap.LastError, boom) {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
}
