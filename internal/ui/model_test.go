package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shelfmark/shelf/internal/backend"
	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/prefs"
	"github.com/shelfmark/shelf/internal/records"
	"github.com/shelfmark/shelf/internal/state"
)

type fakeSource[T livesync.Record] struct {
	view livesync.View[T]
}

func (f *fakeSource[T]) Snapshot() livesync.View[T] { return f.view }

type fakeActions struct {
	patches map[string]backend.Patch
	deleted []string
}

func (f *fakeActions) ListFolders(context.Context) ([]records.Folder, error)     { return nil, nil }
func (f *fakeActions) ListBookmarks(context.Context) ([]records.Bookmark, error) { return nil, nil }

func (f *fakeActions) CreateFolder(_ context.Context, fo records.Folder) (records.Folder, error) {
	return fo, nil
}

func (f *fakeActions) UpdateFolder(_ context.Context, id string, _ backend.Patch) (records.Folder, error) {
	return records.Folder{ID: id}, nil
}

func (f *fakeActions) DeleteFolder(context.Context, string) error { return nil }

func (f *fakeActions) CreateBookmark(_ context.Context, b records.Bookmark) (records.Bookmark, error) {
	return b, nil
}

func (f *fakeActions) UpdateBookmark(_ context.Context, id string, p backend.Patch) (records.Bookmark, error) {
	if f.patches == nil {
		f.patches = map[string]backend.Patch{}
	}
	f.patches[id] = p
	return records.Bookmark{ID: id}, nil
}

func (f *fakeActions) DeleteBookmark(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type harness struct {
	model     Model
	actions   *fakeActions
	bookmarks *fakeSource[records.Bookmark]
	opened    []string
	copied    []string
	refreshes int
	prefsPath string
}

func strPtr(s string) *string { return &s }

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Now()
	folders := &fakeSource[records.Folder]{view: livesync.View[records.Folder]{
		Items:      []records.Folder{{ID: "f1", UserID: "u1", Name: "Reading"}},
		State:      livesync.Live,
		LastReload: now,
	}}
	bookmarks := &fakeSource[records.Bookmark]{view: livesync.View[records.Bookmark]{
		Items: []records.Bookmark{
			{ID: "b1", UserID: "u1", URL: "https://go.dev/blog", Title: "Go blog", FolderID: strPtr("f1"), Tags: []string{"go"}, CreatedAt: now},
			{ID: "b2", UserID: "u1", URL: "https://doc.rust-lang.org/book", Title: "Rust book", IsFavorite: true, Tags: []string{"rust"}, CreatedAt: now.Add(-time.Hour)},
			{ID: "b3", UserID: "u1", URL: "https://example.com/old", Title: "Old page", IsArchived: true, CreatedAt: now.Add(-2 * time.Hour)},
		},
		State:      livesync.Live,
		LastReload: now,
	}}
	store := state.NewStore(folders, bookmarks, browse.Query{Sort: browse.SortCreated, Order: browse.Desc})

	h := &harness{
		actions:   &fakeActions{},
		bookmarks: bookmarks,
		prefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	}
	h.model = New(Options{
		Store:   store,
		Actions: h.actions,
		Refresh: func(context.Context) error {
			h.refreshes++
			return nil
		},
		User:      records.User{ID: "u1", Email: "reader@example.com"},
		Prefs:     prefs.Defaults(),
		PrefsPath: h.prefsPath,
		OpenURL: func(u string) error {
			h.opened = append(h.opened, u)
			return nil
		},
		CopyText: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	})
	h.send(tea.WindowSizeMsg{Width: 140, Height: 30})
	return h
}

// send feeds msg to the model and returns the resulting command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		cmd = h.send(keyMsg(k))
	}
	return cmd
}

// run executes cmd and feeds its message back, as the program loop would.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		h.send(msg)
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func titles(bs []records.Bookmark) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Title
	}
	return out
}

func TestModelStartsOnUnarchivedBookmarks(t *testing.T) {
	h := newHarness(t)
	got := titles(h.model.snapshot.Bookmarks)
	if strings.Join(got, ",") != "Go blog,Rust book" {
		t.Fatalf("bookmarks = %v", got)
	}
	view := h.model.View()
	for _, want := range []string{"shelf", "live", "All Bookmarks (2)", "Reading"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestSidebarSelectsViews(t *testing.T) {
	h := newHarness(t)
	h.model.focus = paneFolders

	h.press("j")
	if !h.model.snapshot.Query.Favorites {
		t.Fatalf("expected favorites view after moving down")
	}
	if got := titles(h.model.snapshot.Bookmarks); len(got) != 1 || got[0] != "Rust book" {
		t.Fatalf("favorites = %v", got)
	}

	h.press("j")
	if got := titles(h.model.snapshot.Bookmarks); len(got) != 1 || got[0] != "Old page" {
		t.Fatalf("archive = %v", got)
	}

	h.press("G")
	if h.model.snapshot.Query.FolderID != "f1" {
		t.Fatalf("FolderID = %q, want f1", h.model.snapshot.Query.FolderID)
	}
	if got := titles(h.model.snapshot.Bookmarks); len(got) != 1 || got[0] != "Go blog" {
		t.Fatalf("folder = %v", got)
	}

	h.press("enter")
	if h.model.focus != paneList {
		t.Fatalf("enter should focus the list")
	}
}

func TestFavoritesKeyTogglesView(t *testing.T) {
	h := newHarness(t)
	h.press("F")
	if !h.model.snapshot.Query.Favorites || h.model.sideRow != 1 {
		t.Fatalf("F should select favorites, query=%+v row=%d", h.model.snapshot.Query, h.model.sideRow)
	}
	h.press("F")
	if h.model.snapshot.Query.Favorites || h.model.sideRow != 0 {
		t.Fatalf("second F should return to all bookmarks")
	}
}

func TestSearchFiltersAsYouType(t *testing.T) {
	h := newHarness(t)
	h.press("/", "r", "u", "s", "t")
	if !h.model.searching {
		t.Fatalf("expected search mode")
	}
	if got := titles(h.model.snapshot.Bookmarks); len(got) != 1 || got[0] != "Rust book" {
		t.Fatalf("search results = %v", got)
	}

	h.press("enter")
	if h.model.searching || h.model.snapshot.Query.Search != "rust" {
		t.Fatalf("enter should keep the search, query=%+v", h.model.snapshot.Query)
	}

	h.press("esc")
	if h.model.snapshot.Query.Search != "" {
		t.Fatalf("esc should clear the search")
	}
}

func TestFavoriteKeyWritesAndReloads(t *testing.T) {
	h := newHarness(t)
	h.run(h.press("f"))

	p, ok := h.actions.patches["b1"]
	if !ok {
		t.Fatalf("expected an update for b1, got %v", h.actions.patches)
	}
	if p["is_favorite"] != true {
		t.Fatalf("patch = %v, want is_favorite=true", p)
	}
	if h.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", h.refreshes)
	}
	if h.model.flash != "added to favorites" || h.model.flashError {
		t.Fatalf("flash = %q (error=%v)", h.model.flash, h.model.flashError)
	}
}

func TestArchiveKeyRestoresInArchiveView(t *testing.T) {
	h := newHarness(t)
	h.press("A")
	h.run(h.press("a"))
	if p := h.actions.patches["b3"]; p["is_archived"] != false {
		t.Fatalf("patch = %v, want is_archived=false", p)
	}
}

func TestDeleteAsksFirst(t *testing.T) {
	h := newHarness(t)

	h.press("d")
	if h.model.modal == nil {
		t.Fatalf("expected confirm modal")
	}
	if !strings.Contains(h.model.View(), "Delete bookmark?") {
		t.Fatalf("modal not rendered")
	}
	if cmd := h.press("n"); cmd != nil || h.model.modal != nil {
		t.Fatalf("n should close the modal without a command")
	}
	if len(h.actions.deleted) != 0 {
		t.Fatalf("nothing should be deleted yet")
	}

	h.press("d")
	h.run(h.press("y"))
	if len(h.actions.deleted) != 1 || h.actions.deleted[0] != "b1" {
		t.Fatalf("deleted = %v, want [b1]", h.actions.deleted)
	}
}

func TestOpenRecordsVisit(t *testing.T) {
	h := newHarness(t)
	h.press("j")
	h.run(h.press("enter"))

	if len(h.opened) != 1 || h.opened[0] != "https://doc.rust-lang.org/book" {
		t.Fatalf("opened = %v", h.opened)
	}
	if p := h.actions.patches["b2"]; p["visit_count"] != 1 {
		t.Fatalf("patch = %v, want visit_count=1", p)
	}
}

func TestCopyUsesClipboard(t *testing.T) {
	h := newHarness(t)
	h.run(h.press("y"))
	if len(h.copied) != 1 || h.copied[0] != "https://go.dev/blog" {
		t.Fatalf("copied = %v", h.copied)
	}
	if h.refreshes != 0 {
		t.Fatalf("copy should not reload")
	}
}

func TestSortChangesArePersisted(t *testing.T) {
	h := newHarness(t)
	h.press("s")
	if h.model.snapshot.Query.Sort != browse.SortTitle {
		t.Fatalf("Sort = %q, want title", h.model.snapshot.Query.Sort)
	}
	h.press("S")
	if h.model.snapshot.Query.Order != browse.Asc {
		t.Fatalf("Order = %q, want asc", h.model.snapshot.Query.Order)
	}
	if got := titles(h.model.snapshot.Bookmarks); strings.Join(got, ",") != "Go blog,Rust book" {
		t.Fatalf("title asc = %v", got)
	}

	saved, err := prefs.Load(h.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.SortBy != "title" || saved.SortOrder != "asc" {
		t.Fatalf("saved prefs = %+v", saved)
	}
}

func TestThemeCycleIsPersisted(t *testing.T) {
	h := newHarness(t)
	h.press("T")
	if h.model.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", h.model.theme.Name)
	}
	saved, err := prefs.Load(h.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.Theme != "Kanagawa" {
		t.Fatalf("saved theme = %q", saved.Theme)
	}
}

func TestCycleTagWrapsToNone(t *testing.T) {
	h := newHarness(t)
	h.press("t")
	first := h.model.snapshot.Query.Tag
	if first == "" {
		t.Fatalf("expected a tag filter")
	}
	h.press("t", "t")
	if h.model.snapshot.Query.Tag != "" {
		t.Fatalf("tag = %q, want cleared after the last tag", h.model.snapshot.Query.Tag)
	}
}

func TestSnapshotClampsSelection(t *testing.T) {
	h := newHarness(t)
	h.press("j")
	if h.model.listRow != 1 {
		t.Fatalf("listRow = %d, want 1", h.model.listRow)
	}

	h.bookmarks.view.Items = h.bookmarks.view.Items[:1]
	h.run(fetchSnapshotCmd(h.model.store))
	if h.model.listRow != 0 {
		t.Fatalf("listRow = %d, want clamped to 0", h.model.listRow)
	}
}

func TestDegradedShowsPolling(t *testing.T) {
	h := newHarness(t)
	h.bookmarks.view.State = livesync.Degraded
	h.bookmarks.view.Polling = true
	h.run(fetchSnapshotCmd(h.model.store))

	header := h.model.renderHeader()
	if !strings.Contains(header, "POLLING") || !strings.Contains(header, "degraded") {
		t.Fatalf("header should show degraded polling state")
	}
	if got := h.model.statusLine(); got != "folders live, bookmarks degraded, polling" {
		t.Fatalf("statusLine = %q", got)
	}
}

func TestUpdatesChannelTriggersSnapshot(t *testing.T) {
	updates := make(chan struct{}, 1)
	updates <- struct{}{}
	msg := waitForUpdate(updates)()
	if u, ok := msg.(updateMsg); !ok || !u.ok {
		t.Fatalf("msg = %#v, want updateMsg{ok:true}", msg)
	}
	close(updates)
	if u := waitForUpdate(updates)().(updateMsg); u.ok {
		t.Fatalf("closed channel should report ok=false")
	}
}

func TestSignedOutQuits(t *testing.T) {
	h := newHarness(t)

	ch := make(chan struct{})
	close(ch)
	msg := waitForSignOut(ch)()
	if _, ok := msg.(signedOutMsg); !ok {
		t.Fatalf("waitForSignOut returned %T", msg)
	}

	cmd := h.send(msg)
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("signed out session should quit the dashboard")
	}
	if !h.model.expired {
		t.Fatal("model should remember the session expired")
	}
}
