// Package watcher observes a vault directory for note changes, coalescing
// bursts of filesystem events into debounced batches for the indexer.
package watcher

import (
	"context"
	"time"
)

// Operation is the type of filesystem change.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change to a note file.
type FileEvent struct {
	// Path is vault-relative with forward slashes.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Watcher watches a vault recursively and emits debounced event batches.
type Watcher interface {
	// Start begins watching and blocks until ctx is cancelled or Stop is
	// called.
	Start(ctx context.Context, path string) error
	// Stop releases resources. Safe to call multiple times.
	Stop() error
	// Events returns debounced event batches. Closed on stop.
	Events() <-chan []FileEvent
	// Errors returns non-fatal watcher errors. Closed on stop.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is how long to coalesce events before emitting.
	DebounceWindow time.Duration
	// EventBufferSize is the batch channel buffer.
	EventBufferSize int
	// IgnorePatterns use the same syntax as the vault scanner.
	IgnorePatterns []string
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 100
	}
	return o
}
