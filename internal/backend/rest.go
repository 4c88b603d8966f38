package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shelfmark/shelf/internal/records"
)

// Patch is a partial row update; keys are column names.
type Patch map[string]any

// Store is the read/write surface the CLI and TUI use.
type Store interface {
	ListFolders(ctx context.Context) ([]records.Folder, error)
	ListBookmarks(ctx context.Context) ([]records.Bookmark, error)
	CreateFolder(ctx context.Context, f records.Folder) (records.Folder, error)
	UpdateFolder(ctx context.Context, id string, p Patch) (records.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
	CreateBookmark(ctx context.Context, b records.Bookmark) (records.Bookmark, error)
	UpdateBookmark(ctx context.Context, id string, p Patch) (records.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
}

// Ensure Client implements Store at compile time.
var _ Store = (*Client)(nil)

const (
	foldersTable   = "folders"
	bookmarksTable = "bookmarks"
	returnRows     = "return=representation"
)

// ListFolders fetches every folder visible to the session, ordered by name.
func (c *Client) ListFolders(ctx context.Context) ([]records.Folder, error) {
	var out []records.Folder
	if err := c.list(ctx, foldersTable, "name.asc", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBookmarks fetches every bookmark visible to the session, newest first.
func (c *Client) ListBookmarks(ctx context.Context) ([]records.Bookmark, error) {
	var out []records.Bookmark
	if err := c.list(ctx, bookmarksTable, "created_at.desc", &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Tags == nil {
			out[i].Tags = []string{}
		}
	}
	return out, nil
}

func (c *Client) list(ctx context.Context, table, order string, dest any) error {
	values := url.Values{}
	values.Set("select", "*")
	values.Set("order", order)
	rel := &url.URL{Path: restPath(table), RawQuery: values.Encode()}
	if err := c.do(ctx, request{method: http.MethodGet, rel: rel, dest: dest}); err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	return nil
}

// CreateFolder inserts f and returns the stored row.
func (c *Client) CreateFolder(ctx context.Context, f records.Folder) (records.Folder, error) {
	if strings.TrimSpace(f.Name) == "" {
		return records.Folder{}, errors.New("folder name is required")
	}
	var rows []records.Folder
	if err := c.insert(ctx, foldersTable, f, &rows); err != nil {
		return records.Folder{}, err
	}
	return first(rows, foldersTable)
}

// UpdateFolder applies p to the folder with id.
func (c *Client) UpdateFolder(ctx context.Context, id string, p Patch) (records.Folder, error) {
	var rows []records.Folder
	if err := c.update(ctx, foldersTable, id, p, &rows); err != nil {
		return records.Folder{}, err
	}
	return first(rows, foldersTable)
}

// DeleteFolder removes the folder with id. Bookmarks filed under it are
// detached by the store.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.delete(ctx, foldersTable, id)
}

// CreateBookmark inserts b and returns the stored row.
func (c *Client) CreateBookmark(ctx context.Context, b records.Bookmark) (records.Bookmark, error) {
	if !records.ValidURL(b.URL) {
		return records.Bookmark{}, fmt.Errorf("invalid url %q", b.URL)
	}
	var rows []records.Bookmark
	if err := c.insert(ctx, bookmarksTable, b, &rows); err != nil {
		return records.Bookmark{}, err
	}
	return first(rows, bookmarksTable)
}

// UpdateBookmark applies p to the bookmark with id.
func (c *Client) UpdateBookmark(ctx context.Context, id string, p Patch) (records.Bookmark, error) {
	var rows []records.Bookmark
	if err := c.update(ctx, bookmarksTable, id, p, &rows); err != nil {
		return records.Bookmark{}, err
	}
	return first(rows, bookmarksTable)
}

// DeleteBookmark removes the bookmark with id.
func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	return c.delete(ctx, bookmarksTable, id)
}

// ToggleFavorite sets the favorite flag to the opposite of b's.
func ToggleFavorite(ctx context.Context, s Store, b records.Bookmark) (records.Bookmark, error) {
	return s.UpdateBookmark(ctx, b.ID, Patch{"is_favorite": !b.IsFavorite, "updated_at": now()})
}

// RecordVisit bumps the visit counter and stamps last_visited.
func RecordVisit(ctx context.Context, s Store, b records.Bookmark) (records.Bookmark, error) {
	return s.UpdateBookmark(ctx, b.ID, Patch{
		"visit_count":  b.VisitCount + 1,
		"last_visited": now(),
	})
}

// SetArchived archives or restores a bookmark.
func SetArchived(ctx context.Context, s Store, id string, archived bool) (records.Bookmark, error) {
	return s.UpdateBookmark(ctx, id, Patch{"is_archived": archived, "updated_at": now()})
}

// EditBookmark applies the given column changes and bumps updated_at.
func EditBookmark(ctx context.Context, s Store, id string, p Patch) (records.Bookmark, error) {
	if len(p) == 0 {
		return records.Bookmark{}, errors.New("nothing to change")
	}
	out := Patch{"updated_at": now()}
	for k, v := range p {
		out[k] = v
	}
	return s.UpdateBookmark(ctx, id, out)
}

// RenameFolder changes a folder's name, and its color when color is not
// empty. The color must come from records.FolderColors.
func RenameFolder(ctx context.Context, s Store, id, name, color string) (records.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return records.Folder{}, errors.New("folder name is required")
	}
	p := Patch{"name": name, "updated_at": now()}
	if color != "" {
		c, ok := records.PaletteColor(color)
		if !ok {
			return records.Folder{}, fmt.Errorf("unknown folder color %q", color)
		}
		p["color"] = c
	}
	return s.UpdateFolder(ctx, id, p)
}

func (c *Client) insert(ctx context.Context, table string, row, dest any) error {
	rel := &url.URL{Path: restPath(table)}
	if err := c.do(ctx, request{method: http.MethodPost, rel: rel, body: row, dest: dest, prefer: returnRows}); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (c *Client) update(ctx context.Context, table, id string, p Patch, dest any) error {
	if id == "" {
		return fmt.Errorf("update %s: id is required", table)
	}
	if len(p) == 0 {
		return fmt.Errorf("update %s: empty patch", table)
	}
	rel := &url.URL{Path: restPath(table), RawQuery: idFilter(id)}
	if err := c.do(ctx, request{method: http.MethodPatch, rel: rel, body: p, dest: dest, prefer: returnRows}); err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, table, id string) error {
	if id == "" {
		return fmt.Errorf("delete %s: id is required", table)
	}
	rel := &url.URL{Path: restPath(table), RawQuery: idFilter(id)}
	if err := c.do(ctx, request{method: http.MethodDelete, rel: rel}); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}

func restPath(table string) string {
	return "/rest/v1/" + table
}

func idFilter(id string) string {
	return url.Values{"id": {"eq." + id}}.Encode()
}

func first[T any](rows []T, table string) (T, error) {
	var zero T
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s: no row returned", table)
	}
	return rows[0], nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
