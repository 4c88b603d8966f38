package state

import (
	"strings"
	"sync"
	"time"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/records"
)

// Source is the read side of a live collection.
type Source[T livesync.Record] interface {
	Snapshot() livesync.View[T]
}

// Snapshot is everything one dashboard frame needs.
type Snapshot struct {
	Folders      []records.Folder
	FolderCounts map[string]int
	Bookmarks    []records.Bookmark // after filtering and sorting
	Tags         []records.Tag
	Stats        browse.Stats
	Query        browse.Query
	Title        string

	FolderState   livesync.ConnState
	BookmarkState livesync.ConnState
	Polling       bool
	Loading       bool // no snapshot has arrived yet
	LastUpdated   time.Time
	LastError     error
}

// IsOffline reports whether both collections have fallen back to polling
// and the last reload failed.
func (s Snapshot) IsOffline() bool {
	return s.FolderState == livesync.Degraded &&
		s.BookmarkState == livesync.Degraded &&
		s.LastError != nil
}

// Live reports whether both channels are connected.
func (s Snapshot) Live() bool {
	return s.FolderState == livesync.Live && s.BookmarkState == livesync.Live
}

// Store holds the user's current selection and derives dashboard snapshots
// from the two live collections.
type Store struct {
	folders   Source[records.Folder]
	bookmarks Source[records.Bookmark]
	now       func() time.Time

	mu    sync.RWMutex
	query browse.Query
}

// NewStore builds a store reading from the given collections.
func NewStore(folders Source[records.Folder], bookmarks Source[records.Bookmark], q browse.Query) *Store {
	return &Store{folders: folders, bookmarks: bookmarks, now: time.Now, query: q}
}

// Query returns the current selection.
func (s *Store) Query() browse.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// SetQuery replaces the selection.
func (s *Store) SetQuery(q browse.Query) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

// Update applies fn to the selection under the lock.
func (s *Store) Update(fn func(*browse.Query)) browse.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.query)
	return s.query
}

// SelectFolder shows one folder, or every bookmark when id is empty. It clears
// the favorites and archive views.
func (s *Store) SelectFolder(id string) {
	s.Update(func(q *browse.Query) {
		q.FolderID = id
		q.Favorites = false
		q.Archived = false
	})
}

// Snapshot derives the current dashboard view.
func (s *Store) Snapshot() Snapshot {
	fv := s.folders.Snapshot()
	bv := s.bookmarks.Snapshot()

	q := s.reconcile(fv)

	snap := Snapshot{
		Folders:       fv.Items,
		FolderCounts:  browse.FolderCounts(bv.Items),
		Bookmarks:     browse.Apply(bv.Items, q),
		Tags:          browse.Tags(bv.Items),
		Stats:         browse.ComputeStats(bv.Items, fv.Items, s.now()),
		Query:         q,
		FolderState:   fv.State,
		BookmarkState: bv.State,
		Polling:       fv.Polling || bv.Polling,
		Loading:       fv.LastReload.IsZero() && bv.LastReload.IsZero() && len(fv.Items) == 0 && len(bv.Items) == 0,
		LastError:     firstErr(bv.LastError, fv.LastError),
	}
	snap.LastUpdated = latest(fv.LastReload, bv.LastReload)
	snap.Title = title(q, fv.Items)
	return snap
}

// reconcile drops a folder selection whose folder no longer exists. Nothing
// is reset before the first folder reload so a cached selection survives
// startup.
func (s *Store) reconcile(fv livesync.View[records.Folder]) browse.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.query.FolderID == "" || fv.LastReload.IsZero() {
		return s.query
	}
	for _, f := range fv.Items {
		if f.ID == s.query.FolderID {
			return s.query
		}
	}
	s.query.FolderID = ""
	return s.query
}

func title(q browse.Query, folders []records.Folder) string {
	var base string
	switch {
	case q.Archived:
		base = "Archive"
	case q.Favorites:
		base = "Favorites"
	case q.FolderID != "":
		base = "Folder"
		for _, f := range folders {
			if f.ID == q.FolderID {
				base = f.Name
				break
			}
		}
	default:
		base = "All Bookmarks"
	}
	if q.Tag != "" {
		base += " #" + q.Tag
	}
	if needle := strings.TrimSpace(q.Search); needle != "" {
		base += " / " + needle
	}
	return base
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
