// Package state combines the live folder and bookmark collections with the
// user's current selection into dashboard snapshots.
//
// # Overview
//
// The two livesync collections update from their own goroutines. The UI
// never reads them directly; it asks the Store for a Snapshot on every
// refresh tick or update notification:
//
//	livesync (folders)   ─┐
//	                      ├──→ Store.Snapshot() ──→ render
//	livesync (bookmarks) ─┘         ↑
//	                          selection (Query)
//
// # Selection
//
// The Store owns a browse.Query behind a RWMutex. Key handlers mutate it
// through SelectFolder, SetQuery or Update; Snapshot reads it.
//
// A selected folder that disappears (deleted here or on another device) is
// cleared by the next Snapshot so the list falls back to all bookmarks.
// Selections are never cleared before the first folder reload.
//
// # Snapshot Contents
//
//   - Folders and per-folder counts
//   - Visible bookmarks, filtered and sorted per the query
//   - Tag cloud and stats over the whole collection
//   - Connection state of both channels, polling flag and last error
//   - A title describing the current view
//
// Snapshots share item slices with the livesync views, which are copies
// already. Callers must treat them as read-only.
package state
