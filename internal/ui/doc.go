// Package ui is shelf's terminal dashboard, built on Bubble Tea.
//
// The screen is a header, a command bar and three panes: folders on the left,
// the filtered bookmark list in the middle and details for the highlighted
// bookmark on the right. The detail pane is dropped on narrow terminals.
//
// The model never talks to the sync engine directly. It reads frames from a
// Dashboard (normally a *state.Store) whenever the collections signal a
// change on the Updates channel, and on a one second timer so relative
// timestamps stay fresh. Writes go through backend.Store off the UI
// goroutine and are followed by a reload.
//
// The header shows one badge per collection with the channel state
// (connecting, live, degraded, torn_down) and a POLLING marker while either
// collection is polling. When both collections are degraded and the last
// reload failed it shows OFFLINE instead.
//
// Theme and sort choices are written back to the prefs file as they change.
package ui
