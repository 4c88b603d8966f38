package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the detail pane is
	// hidden and the header drops secondary fields.
	LayoutCompactWidth = 100

	// LayoutExtraWideWidth is the threshold above which the detail pane
	// takes the larger share.
	LayoutExtraWideWidth = 160
)

// Sidebar bounds.
const (
	SidebarMinWidth = 18
	SidebarMaxWidth = 32
)

// Timing constants.
const (
	// DefaultUIInterval is the default redraw interval when no update
	// arrives from the collections.
	DefaultUIInterval = time.Second

	// FlashDuration is how long a status message stays in the header.
	FlashDuration = 5 * time.Second
)
