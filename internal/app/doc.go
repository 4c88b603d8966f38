// Package app is the composition root for shelf.
//
// # Overview
//
// Open turns a config file and a stored session into an Env: the backend
// client, a logger and a lazily opened snapshot cache. The CLI commands use
// an Env directly; Run and Watch add the live layer on top.
//
// # Startup
//
//  1. Load config (api_url, api_key, data dir) and validate it
//  2. Open the log destination (the data-dir log file for the TUI)
//  3. Build the backend client and install any stored session
//  4. Refresh the session if it is close to expiry (RequireUser)
//  5. NewLive: realtime feed, two livesync instances, dashboard store
//  6. Start both collections for the signed-in user
//  7. Run the TUI (or print summaries in Watch) until exit
//  8. Stop both collections, which releases the feed and the pollers
//
// # Components
//
//   - app.go: Env, sign in and out, Run
//   - live.go: the folder and bookmark syncs plus the dashboard store
//   - poller.go: background session keeper that refreshes tokens and pushes
//     them to the realtime socket
//   - watch.go: headless mode that prints collection summaries
//
// # Data Flow
//
//	backend REST ──snapshot──┐
//	                         ├──→ livesync.Sync ×2 ──→ state.Store ──→ ui
//	realtime socket ─change──┘          │
//	                                    └──→ cache (last good snapshot)
//
// Session rotations are written back to session.toml through the client's
// OnSessionChange hook.
package app
