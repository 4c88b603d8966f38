// Package config loads shelf's connection and storage settings.
//
// # Discovery
//
// Load resolves the config file in this order:
//
//  1. An explicitly provided path
//  2. The platform config dir, usually ~/.config/shelf/config.toml
//
// A missing file is not an error. Defaults are used and SHELF_API_URL /
// SHELF_API_KEY may still supply the backend, so a fresh install can run
// with two environment variables and nothing on disk.
//
// # TOML Format
//
//	api_url = "https://abc.supabase.co"
//	api_key = "public-anon-key"
//	realtime_url = ""            # derived from api_url when empty
//	poll_seconds = 8             # fallback polling cadence
//	data_dir = "~/.local/share/shelf"
//	log_level = "info"
//
// Every field is optional. Tilde paths are expanded and relative paths are
// made absolute.
//
// # Derived Paths
//
// The data dir holds everything shelf writes:
//
//   - session.toml: the signed-in session (0600)
//   - cache.db: last-known collection snapshots
//   - shelf.log: log output while the TUI owns the terminal
//
// # Errors
//
// Load fails on unreadable files, invalid TOML and unknown log levels.
// Validate reports ErrNotConfigured when no backend URL or key is known.
package config
