package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/records"
)

// minPrefixLen is the shortest id prefix accepted on the command line.
const minPrefixLen = 6

var (
	errNotFound  = errors.New("not found")
	errAmbiguous = errors.New("ambiguous id prefix")
)

// findByPrefix returns the single item whose id equals ref or starts with it.
func findByPrefix[T livesync.Record](items []T, ref, kind string) (T, error) {
	var zero T
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return zero, fmt.Errorf("%s id is required", kind)
	}
	for _, it := range items {
		if strings.ToLower(it.RecordID()) == ref {
			return it, nil
		}
	}
	if len(ref) < minPrefixLen {
		return zero, fmt.Errorf("%s id %q is too short, use at least %d characters", kind, ref, minPrefixLen)
	}

	var matches []T
	for _, it := range items {
		if strings.HasPrefix(strings.ToLower(it.RecordID()), ref) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%s %q: %w", kind, ref, errNotFound)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%s %q matches %d items: %w", kind, ref, len(matches), errAmbiguous)
	}
}

// findFolder matches a folder by exact name (case-insensitive) before
// falling back to an id prefix.
func findFolder(folders []records.Folder, ref string) (records.Folder, error) {
	name := strings.TrimSpace(ref)
	var named []records.Folder
	for _, f := range folders {
		if strings.EqualFold(f.Name, name) {
			named = append(named, f)
		}
	}
	switch len(named) {
	case 1:
		return named[0], nil
	case 0:
		return findByPrefix(folders, ref, "folder")
	default:
		return records.Folder{}, fmt.Errorf("folder name %q is used %d times, use its id", name, len(named))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
