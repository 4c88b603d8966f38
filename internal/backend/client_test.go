package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shelfmark/shelf/internal/records"
)

func TestParseBaseURL_Normalizes(t *testing.T) {
	u, err := parseBaseURL("abc.supabase.co")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Host != "abc.supabase.co" {
		t.Fatalf("url = %q, want https://abc.supabase.co", u.String())
	}

	u, err = parseBaseURL("http://localhost:54321/rest/v1?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("   "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL, "anon-key")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func TestClient_RequiresSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	_, err := c.ListFolders(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestClient_SignInAndList(t *testing.T) {
	var gotOrder, gotAuth, gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/token":
			if r.URL.Query().Get("grant_type") != "password" {
				t.Errorf("grant_type = %q", r.URL.Query().Get("grant_type"))
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["email"] != "ada@example.com" || body["password"] != "secret" {
				http.Error(w, `{"error_description":"Invalid login credentials"}`, http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"tok","refresh_token":"ref","expires_in":3600,
				"user":{"id":"u1","email":"ada@example.com","user_metadata":{"full_name":"Ada"}}}`)
		case "/rest/v1/folders":
			gotOrder = r.URL.Query().Get("order")
			gotAuth = r.Header.Get("Authorization")
			gotKey = r.Header.Get("apikey")
			_ = json.NewEncoder(w).Encode([]records.Folder{{ID: "f1", UserID: "u1", Name: "Work"}})
		default:
			http.NotFound(w, r)
		}
	})

	var persisted Session
	c.OnSessionChange(func(s Session) { persisted = s })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	if _, err := c.SignIn(ctx, "ada@example.com", "wrong"); err == nil {
		t.Fatal("SignIn with bad password succeeded")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "Invalid login credentials" {
			t.Fatalf("err = %#v, want APIError 400 with message", err)
		}
	}

	s, err := c.SignIn(ctx, "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if s.User.ID != "u1" || s.User.FullName != "Ada" || s.AccessToken != "tok" {
		t.Fatalf("session = %#v", s)
	}
	if s.ExpiresAt.IsZero() {
		t.Fatal("ExpiresAt not derived from expires_in")
	}
	if persisted.AccessToken != "tok" {
		t.Fatalf("OnSessionChange not called, got %#v", persisted)
	}

	folders, err := c.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders returned error: %v", err)
	}
	if len(folders) != 1 || folders[0].Name != "Work" {
		t.Fatalf("folders = %#v", folders)
	}
	if gotOrder != "name.asc" {
		t.Fatalf("order = %q, want name.asc", gotOrder)
	}
	if gotAuth != "Bearer tok" || gotKey != "anon-key" {
		t.Fatalf("headers auth=%q apikey=%q", gotAuth, gotKey)
	}
}

func TestClient_BookmarkWrites(t *testing.T) {
	type call struct {
		method, query, prefer string
		body                  map[string]any
	}
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/bookmarks" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.RawQuery, r.Header.Get("Prefer"), body})

		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"id":"b1","user_id":"u1","url":"https://a.dev","title":"A","tags":null}]`)
		case http.MethodPost, http.MethodPatch:
			row := map[string]any{"id": "b1", "user_id": "u1", "url": "https://a.dev", "title": "A"}
			for k, v := range body {
				row[k] = v
			}
			_ = json.NewEncoder(w).Encode([]map[string]any{row})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c.SetSession(Session{AccessToken: "tok", User: records.User{ID: "u1"}})
	ctx := context.Background()

	list, err := c.ListBookmarks(ctx)
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(list) != 1 || list[0].Tags == nil {
		t.Fatalf("ListBookmarks = %#v, want tags normalised to empty", list)
	}

	b := records.NewBookmark(records.NewBookmarkParams{UserID: "u1", URL: "a.dev"})
	if _, err := c.CreateBookmark(ctx, b); err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}
	fav, err := ToggleFavorite(ctx, c, list[0])
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !fav.IsFavorite {
		t.Fatalf("ToggleFavorite result = %#v", fav)
	}
	visited, err := RecordVisit(ctx, c, records.Bookmark{ID: "b1", VisitCount: 4})
	if err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	if visited.VisitCount != 5 || visited.LastVisited == nil {
		t.Fatalf("RecordVisit result = %#v", visited)
	}
	if err := c.DeleteBookmark(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBookmark: %v", err)
	}

	if len(calls) != 5 {
		t.Fatalf("calls = %d, want 5", len(calls))
	}
	if calls[0].query != "order=created_at.desc&select=%2A" {
		t.Fatalf("list query = %q", calls[0].query)
	}
	if calls[1].method != http.MethodPost || calls[1].prefer != returnRows || calls[1].body["url"] != "https://a.dev" {
		t.Fatalf("create call = %#v", calls[1])
	}
	if calls[2].method != http.MethodPatch || calls[2].query != "id=eq.b1" || calls[2].body["is_favorite"] != true {
		t.Fatalf("favorite call = %#v", calls[2])
	}
	if calls[3].body["visit_count"] != float64(5) {
		t.Fatalf("visit call = %#v", calls[3])
	}
	if calls[4].method != http.MethodDelete || calls[4].query != "id=eq.b1" {
		t.Fatalf("delete call = %#v", calls[4])
	}
}

func TestClient_RejectsInvalidWrites(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	c.SetSession(Session{AccessToken: "tok", User: records.User{ID: "u1"}})
	ctx := context.Background()

	if _, err := c.CreateBookmark(ctx, records.Bookmark{URL: "not a url"}); err == nil {
		t.Fatal("CreateBookmark accepted invalid url")
	}
	if _, err := c.CreateFolder(ctx, records.Folder{Name: "  "}); err == nil {
		t.Fatal("CreateFolder accepted empty name")
	}
	if _, err := c.UpdateBookmark(ctx, "", Patch{"title": "x"}); err == nil {
		t.Fatal("UpdateBookmark accepted empty id")
	}
	if _, err := RenameFolder(ctx, c, "f1", "", ""); err == nil {
		t.Fatal("RenameFolder accepted empty name")
	}
	if _, err := RenameFolder(ctx, c, "f1", "Work", "#000000"); err == nil {
		t.Fatal("RenameFolder accepted a color outside the palette")
	}
	if _, err := EditBookmark(ctx, c, "b1", Patch{}); err == nil {
		t.Fatal("EditBookmark accepted an empty patch")
	}
}

func TestEditBookmarkAndRenameFolder(t *testing.T) {
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		row := map[string]any{"id": "x1", "user_id": "u1", "url": "https://a.dev", "title": "A", "name": "F"}
		for k, v := range body {
			row[k] = v
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{row})
	})
	c.SetSession(Session{AccessToken: "tok", User: records.User{ID: "u1"}})
	ctx := context.Background()

	b, err := EditBookmark(ctx, c, "x1", Patch{"title": "Renamed", "folder_id": nil})
	if err != nil {
		t.Fatalf("EditBookmark: %v", err)
	}
	if b.Title != "Renamed" || b.FolderID != nil {
		t.Fatalf("EditBookmark result = %#v", b)
	}
	if _, ok := bodies[0]["updated_at"]; !ok || len(bodies[0]) != 3 {
		t.Fatalf("edit body = %#v, want title, folder_id and updated_at", bodies[0])
	}

	f, err := RenameFolder(ctx, c, "x1", " Work ", "#34D399")
	if err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}
	if f.Name != "Work" || f.Color != "#34d399" {
		t.Fatalf("RenameFolder result = %#v", f)
	}

	if _, err := RenameFolder(ctx, c, "x1", "Home", ""); err != nil {
		t.Fatalf("RenameFolder without color: %v", err)
	}
	if _, ok := bodies[2]["color"]; ok {
		t.Fatalf("rename body = %#v, color should be left alone", bodies[2])
	}
}

func TestClient_RefreshAndSignOut(t *testing.T) {
	var loggedOut bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if r.URL.Query().Get("grant_type") != "refresh_token" || body["refresh_token"] != "ref-1" {
				http.Error(w, `{"msg":"bad refresh"}`, http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"tok-2","refresh_token":"ref-2","expires_at":4102444800,"user":{"id":"u1"}}`)
		case "/auth/v1/logout":
			loggedOut = r.Header.Get("Authorization") == "Bearer tok-2"
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	c.SetSession(Session{
		AccessToken:  "tok-1",
		RefreshToken: "ref-1",
		ExpiresAt:    time.Now().Add(10 * time.Second),
		User:         records.User{ID: "u1"},
	})
	ctx := context.Background()

	if err := c.EnsureFresh(ctx); err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if got := c.AccessToken(); got != "tok-2" {
		t.Fatalf("AccessToken = %q, want tok-2", got)
	}
	if err := c.EnsureFresh(ctx); err != nil {
		t.Fatalf("EnsureFresh on fresh session: %v", err)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if !loggedOut {
		t.Fatal("logout endpoint not called with current token")
	}
	if _, ok := c.Session(); ok {
		t.Fatal("session still set after SignOut")
	}
}

func TestSessionFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.toml")

	if _, ok, err := LoadSession(path); err != nil || ok {
		t.Fatalf("LoadSession on missing file = ok %v err %v, want false nil", ok, err)
	}

	want := Session{
		AccessToken:  "tok",
		RefreshToken: "ref",
		ExpiresAt:    time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
		User:         records.User{ID: "u1", Email: "ada@example.com"},
	}
	if err := SaveSession(path, want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, ok, err := LoadSession(path)
	if err != nil || !ok {
		t.Fatalf("LoadSession = ok %v err %v", ok, err)
	}
	if got.AccessToken != want.AccessToken || got.User != want.User || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("LoadSession = %#v, want %#v", got, want)
	}

	if err := RemoveSession(path); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	if err := RemoveSession(path); err != nil {
		t.Fatalf("RemoveSession on missing file: %v", err)
	}
}
