// Package backend is the HTTP client for the managed store that holds
// bookmarks and folders.
//
// # Endpoints
//
//   - /auth/v1/token: password sign-in and refresh-token rotation
//   - /auth/v1/user: the user behind the current access token
//   - /auth/v1/logout: server-side session revocation
//   - /rest/v1/folders, /rest/v1/bookmarks: row reads and writes
//
// Every request carries the project api key in the apikey header and a bearer
// token: the session's access token, or the api key itself for the anonymous
// auth calls. Row-level authorization is enforced by the store, so list
// queries carry no owner filter.
//
// # Errors
//
// Responses with status >= 400 become *APIError, carrying the most useful
// message the service returned. Calls that need a session return
// ErrNotAuthenticated before any network I/O when none is set.
//
// # Sessions
//
// LoadSession and SaveSession persist a Session as TOML with 0600
// permissions. Register OnSessionChange to write rotated tokens back.
package backend
