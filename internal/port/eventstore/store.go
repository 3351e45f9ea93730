// Package eventstore defines the append-only activity log port (interface).
package eventstore

import (
	"context"

	"github.com/litrev/litrev/internal/domain/event"
)

// Store is the port interface for the activity log.
type Store interface {
	// Append inserts a new activity event. The log is append-only.
	Append(ctx context.Context, ev *event.ActivityEvent) error

	// ListByProject returns the most recent events for a project, newest
	// first, up to limit.
	ListByProject(ctx context.Context, projectID string, limit int) ([]event.ActivityEvent, error)
}
