// Package livesync keeps a per-user collection of records consistent with the
// server.
//
// # Overview
//
// A Sync instance owns one in-memory collection (folders or bookmarks) for one
// authenticated user. It combines three sources of truth:
//
//   - A snapshot loader that fetches the full collection over REST
//   - A change feed that pushes insert, update and delete events
//   - A fallback poller that reloads the snapshot while the feed is not live
//
// Every event is filtered by owner before it touches the collection, so rows
// belonging to other users never appear even if the server broadcasts them.
//
// # Connection States
//
//	            Subscribed
//	CONNECTING ───────────→ LIVE
//	    │                  ↑  │
//	    │ error/timeout    │  │ error/timeout/closed
//	    ↓                  │  ↓
//	 DEGRADED ─────────────┘ DEGRADED
//	            Subscribed
//
//	any state ── Stop() ──→ TORN_DOWN (terminal)
//
// The poller is armed in CONNECTING and DEGRADED and disarmed in LIVE. The
// transition function is NextState; it is pure and tested on its own.
//
// # Merge Rules
//
//   - Insert of an id already present is ignored
//   - Update replaces the row in place; an unknown id is inserted
//   - Delete of an unknown id is ignored
//
// Folders are kept sorted case-insensitively by name. Bookmarks keep the
// server order (newest first) and new rows are prepended.
//
// # Teardown
//
// Stop is idempotent. After it returns no poll tick starts a reload, results
// of in-flight loads are discarded and late feed events are ignored. Each
// Start bumps a generation counter; callbacks carry the generation they were
// registered with and are dropped when it no longer matches.
//
// # Usage Example
//
//	folders := livesync.New(livesync.Options[records.Folder]{
//		Collection: livesync.FolderCollection(),
//		Load:       client.ListFolders,
//		Feed:       rt,
//		OnUpdate:   func() { program.Send(refreshMsg{}) },
//	})
//	if err := folders.Start(ctx, user.ID); err != nil {
//		return err
//	}
//	defer folders.Stop()
//
//	view := folders.Snapshot()
//	fmt.Println(view.State, len(view.Items))
package livesync
