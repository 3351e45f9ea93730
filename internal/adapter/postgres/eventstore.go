package postgres

import (
	"context"
	"fmt"

	"github.com/litrev/litrev/internal/domain/event"
)

// EventStore implements eventstore.Store on the activity_events table.
type EventStore struct {
	store *Store
}

// NewEventStore creates an activity log backed by the same pool as the store.
func NewEventStore(store *Store) *EventStore {
	return &EventStore{store: store}
}

func (e *EventStore) Append(ctx context.Context, ev *event.ActivityEvent) error {
	err := e.store.q.QueryRow(ctx,
		`INSERT INTO activity_events (id, project_id, project_work_id, actor_id, type, payload, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		ev.ID, ev.ProjectID, nullIfEmpty(ev.ProjectWorkID), ev.ActorID, ev.Type,
		[]byte(ev.Payload), nullIfEmpty(ev.RequestID)).
		Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity event: %w", err)
	}
	return nil
}

func (e *EventStore) ListByProject(ctx context.Context, projectID string, limit int) ([]event.ActivityEvent, error) {
	rows, err := e.store.q.Query(ctx,
		`SELECT id, project_id, COALESCE(project_work_id, ''), actor_id, type, payload, COALESCE(request_id, ''), created_at
		 FROM activity_events WHERE project_id = $1
		 ORDER BY created_at DESC LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	var events []event.ActivityEvent
	for rows.Next() {
		var ev event.ActivityEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.ProjectWorkID, &ev.ActorID,
			&ev.Type, &payload, &ev.RequestID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}
