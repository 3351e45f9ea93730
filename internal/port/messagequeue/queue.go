// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by litrev.
const (
	// SubjectIngestFullText carries {project_work_id, work_id, source}
	// hand-offs to the full-text ingestion workers when a study transitions
	// to INCLUDED. Fire-and-forget: the engine never waits on ingestion.
	SubjectIngestFullText = "ingest.fulltext"

	// SubjectActivity carries activity-log entries for external notification
	// feeds (email digests, integrations).
	SubjectActivity = "activity.events"
)

// IngestJob is the payload published on SubjectIngestFullText.
type IngestJob struct {
	ProjectWorkID string `json:"project_work_id"`
	WorkID        string `json:"work_id"`
	Source        string `json:"source"`
}
