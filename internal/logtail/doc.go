// Package logtail reads the tail of shelf's log file and highlights it for
// the terminal.
//
// Lines are expected in the text format charmbracelet/log writes:
//
//	2026/10/18 09:14:02 INFO realtime: subscribed topic=bookmarks
//
// Read keeps only the last N lines in a ring buffer, so large files are
// scanned once without being held in memory. Parse splits a line into an
// Entry; lines that do not parse (stack traces, continuation output) are
// kept as-is and inherit the level of the entry above them when filtering.
package logtail
