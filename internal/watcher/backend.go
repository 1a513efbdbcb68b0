package watcher

import "context"

// Backend defines the file watching implementation.
type Backend interface {
	// Watch adds a path to be monitored. Directories are watched
	// recursively.
	Watch(path string) error

	// Unwatch stops monitoring a previously watched path.
	Unwatch(path string) error

	// Start begins watching for events and blocks until the context is
	// canceled.
	Start(ctx context.Context) error

	// Stop stops the watcher and releases all resources.
	Stop() error

	// Events returns the channel for receiving settled events.
	Events() <-chan Event

	// Errors returns the channel for receiving errors.
	Errors() <-chan error
}
