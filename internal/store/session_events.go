// ABOUTME: Session event log: supervisor state transitions per session
// ABOUTME: Lets operators see reconnect history after the fact

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordSessionEvent appends a session event.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) RecordSessionEvent(ctx context.Context, evt *SessionEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_events (id, session, state, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, evt.ID, evt.Session, evt.State, evt.Detail, formatTime(evt.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting session event: %w", err)
	}
	return nil
}

// ListSessionEvents returns the most recent events of one session, newest first.
func (s *SQLiteStore) ListSessionEvents(ctx context.Context, session string, limit int) ([]SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, state, detail, created_at
		FROM session_events
		WHERE session = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, session, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []SessionEvent{}
	for rows.Next() {
		var evt SessionEvent
		var createdAt string
		if err := rows.Scan(&evt.ID, &evt.Session, &evt.State, &evt.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		evt.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session events: %w", err)
	}
	return events, nil
}
