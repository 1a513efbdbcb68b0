// Package watcher monitors library roots for filesystem changes and turns
// settled event bursts into rescan requests. It never writes to the catalog
// itself; the single write path stays with the scanner.
package watcher

import "time"

// EventType represents the type of file system event.
type EventType int

const (
	// EventChanged is emitted when a file is created or modified, after
	// the settle window closes.
	EventChanged EventType = iota
	// EventRemoved is emitted when a file is deleted.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one settled file system event.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
