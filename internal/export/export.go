// Package export writes bookmark collections in portable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shelfmark/shelf/internal/records"
)

// Format names an export format.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
	HTML Format = "html"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV, YAML, HTML:
		return f, nil
	case "yml":
		return YAML, nil
	case "":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json, csv, yaml or html)", s)
	}
}

// Write encodes bookmarks to w in format f. Folders resolve folder names.
func Write(w io.Writer, f Format, bookmarks []records.Bookmark, folders []records.Folder) error {
	switch f {
	case JSON:
		return WriteJSON(w, bookmarks)
	case CSV:
		return WriteCSV(w, bookmarks, folders)
	case YAML:
		return WriteYAML(w, bookmarks, folders)
	case HTML:
		return WriteHTML(w, bookmarks, folders)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteJSON writes bookmarks as an indented JSON array of rows.
func WriteJSON(w io.Writer, bookmarks []records.Bookmark) error {
	if bookmarks == nil {
		bookmarks = []records.Bookmark{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bookmarks); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

var csvHeader = []string{"Title", "URL", "Description", "Tags", "Folder", "Created At"}

// WriteCSV writes one row per bookmark. Tags are joined with ";".
func WriteCSV(w io.Writer, bookmarks []records.Bookmark, folders []records.Folder) error {
	names := folderNames(folders)
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, b := range bookmarks {
		rec := []string{
			b.Title,
			b.URL,
			deref(b.Description),
			strings.Join(b.Tags, ";"),
			folderName(names, b.FolderID),
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

type yamlBookmark struct {
	Title       string    `yaml:"title"`
	URL         string    `yaml:"url"`
	Description string    `yaml:"description,omitempty"`
	Tags        []string  `yaml:"tags,omitempty"`
	Folder      string    `yaml:"folder,omitempty"`
	Favorite    bool      `yaml:"favorite,omitempty"`
	Archived    bool      `yaml:"archived,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// WriteYAML writes a readable YAML list with folder names resolved.
func WriteYAML(w io.Writer, bookmarks []records.Bookmark, folders []records.Folder) error {
	names := folderNames(folders)
	out := make([]yamlBookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, yamlBookmark{
			Title:       b.Title,
			URL:         b.URL,
			Description: deref(b.Description),
			Tags:        b.Tags,
			Folder:      folderName(names, b.FolderID),
			Favorite:    b.IsFavorite,
			Archived:    b.IsArchived,
			CreatedAt:   b.CreatedAt.UTC(),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}

func folderNames(folders []records.Folder) map[string]string {
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}
	return names
}

func folderName(names map[string]string, id *string) string {
	if id == nil {
		return ""
	}
	return names[*id]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
