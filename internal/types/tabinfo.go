package types

import "context"

// CycleCommand is the only command name the cycle controller reacts to.
const CycleCommand = "cycle-clicked-tabs"

// StatusComplete marks a finished navigation in an update event.
const StatusComplete = "complete"

// Tab is a live snapshot of a browser tab as reported by the browser surface.
type Tab struct {
	ID       int64  `json:"id"`
	WindowID int64  `json:"windowId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// ChangeInfo carries the subset of an update notification the reactor reads.
type ChangeInfo struct {
	Status string `json:"status,omitempty"`
}

// EventKind names a tab lifecycle notification.
type EventKind string

const (
	EventActivated EventKind = "activated"
	EventUpdated   EventKind = "updated"
	EventRemoved   EventKind = "removed"
)

// TabEvent is one tab lifecycle notification. Change and Tab are only
// meaningful for EventUpdated.
type TabEvent struct {
	Kind   EventKind
	TabID  int64
	Change ChangeInfo
	Tab    Tab
}

// TabGetter looks up live tab metadata. GetTab fails when the tab is gone.
type TabGetter interface {
	GetTab(ctx context.Context, tabID int64) (Tab, error)
}

// TabActivator brings a tab and its window to the foreground.
// Both calls fail when the tab or window no longer exists.
type TabActivator interface {
	ActivateTab(ctx context.Context, tabID int64) error
	FocusWindow(ctx context.Context, windowID int64) error
}

// TabSurface is the full tab/window query-and-mutate surface.
type TabSurface interface {
	TabGetter
	TabActivator
}
