// Package records defines the bookmark and folder rows mirrored from the
// managed store, plus the small URL helpers the add flows share.
package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bookmark mirrors a row of the bookmarks table.
type Bookmark struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Favicon     *string    `json:"favicon"`
	FolderID    *string    `json:"folder_id"`
	Tags        []string   `json:"tags"`
	IsFavorite  bool       `json:"is_favorite"`
	OGImage     *string    `json:"og_image"`
	VisitCount  int        `json:"visit_count,omitempty"`
	LastVisited *time.Time `json:"last_visited,omitempty"`
	IsArchived  bool       `json:"is_archived,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RecordID returns the bookmark id.
func (b Bookmark) RecordID() string { return b.ID }

// RecordOwner returns the owning user id.
func (b Bookmark) RecordOwner() string { return b.UserID }

// InFolder reports whether the bookmark is filed under folderID.
func (b Bookmark) InFolder(folderID string) bool {
	return b.FolderID != nil && *b.FolderID == folderID
}

// HasTag reports whether tag is one of the bookmark's tags (exact match).
func (b Bookmark) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Folder mirrors a row of the folders table.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	ParentID  *string   `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID returns the folder id.
func (f Folder) RecordID() string { return f.ID }

// RecordOwner returns the owning user id.
func (f Folder) RecordOwner() string { return f.UserID }

// Tag is a distinct tag with the number of bookmarks carrying it.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// User is the authenticated account.
type User struct {
	ID       string `json:"id" toml:"id"`
	Email    string `json:"email" toml:"email"`
	FullName string `json:"full_name,omitempty" toml:"full_name,omitempty"`
}

// Fields an insert payload must carry before it is accepted into a collection.
var (
	FolderRequiredFields   = []string{"id", "user_id", "name", "color", "icon", "created_at", "updated_at"}
	BookmarkRequiredFields = []string{"id", "user_id", "url", "title", "created_at", "updated_at"}
)

// FolderColors is the palette offered when creating a folder.
var FolderColors = []string{
	"#6366f1", "#a78bfa", "#f472b6", "#f87171", "#fb923c",
	"#fbbf24", "#34d399", "#06b6d4", "#3b82f6", "#8b5cf6",
}

// PaletteColor returns the FolderColors entry matching c, ignoring case.
func PaletteColor(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, p := range FolderColors {
		if p == c {
			return p, true
		}
	}
	return "", false
}

const (
	DefaultFolderColor = "#6366f1"
	DefaultFolderIcon  = "folder"
)

// NewBookmarkParams holds parameters for creating a new Bookmark.
type NewBookmarkParams struct {
	UserID      string
	URL         string
	Title       string
	Description string
	FolderID    *string
	Tags        []string
	Favorite    bool
}

// NewBookmark builds a Bookmark with a generated id and timestamps. The URL
// is normalised and the title derived from it when empty.
func NewBookmark(params NewBookmarkParams) Bookmark {
	now := time.Now().UTC()
	url := NormalizeURL(params.URL)
	title := params.Title
	if title == "" {
		title = TitleFromURL(url)
	}
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	b := Bookmark{
		ID:         uuid.NewString(),
		UserID:     params.UserID,
		URL:        url,
		Title:      title,
		FolderID:   params.FolderID,
		Tags:       tags,
		IsFavorite: params.Favorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if params.Description != "" {
		desc := params.Description
		b.Description = &desc
	}
	if icon := FaviconURL(url); icon != "" {
		b.Favicon = &icon
	}
	return b
}

// NewFolderParams holds parameters for creating a new Folder.
type NewFolderParams struct {
	UserID   string
	Name     string
	Color    string
	ParentID *string
}

// NewFolder builds a Folder with a generated id, falling back to the default
// colour and icon.
func NewFolder(params NewFolderParams) Folder {
	now := time.Now().UTC()
	color := params.Color
	if color == "" {
		color = DefaultFolderColor
	}
	return Folder{
		ID:        uuid.NewString(),
		UserID:    params.UserID,
		Name:      params.Name,
		Color:     color,
		Icon:      DefaultFolderIcon,
		ParentID:  params.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
