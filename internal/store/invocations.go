// ABOUTME: Invocation audit records: one row per dispatched command
// ABOUTME: Supports filtered, newest-first listing for the status API

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordInvocation appends an invocation record.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, rec *InvocationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	args := rec.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshaling args: %w", err)
	}

	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}

	query := `
		INSERT INTO invocations (id, session, scope, sender, command, args_json, outcome, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Session,
		rec.Scope,
		int64(rec.Sender),
		rec.Command,
		string(argsJSON),
		rec.Outcome,
		rec.Duration.Milliseconds(),
		errText,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("recorded invocation",
		"id", rec.ID,
		"session", rec.Session,
		"command", rec.Command,
		"outcome", rec.Outcome,
	)
	return nil
}

const invocationColumns = `id, session, scope, sender, command, args_json, outcome, duration_ms, error, created_at`

// GetInvocation retrieves one invocation by ID.
func (s *SQLiteStore) GetInvocation(ctx context.Context, id string) (*InvocationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	rec, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

const listInvocationsQuery = `
	SELECT ` + invocationColumns + `
	FROM invocations
	WHERE (? IS NULL OR session = ?)
	  AND (? IS NULL OR command = ?)
	  AND (? IS NULL OR outcome = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
`

// ListInvocations returns invocations matching the filter, newest first.
func (s *SQLiteStore) ListInvocations(ctx context.Context, f InvocationFilter) ([]InvocationRecord, error) {
	var since *string
	if f.Since != nil {
		v := formatTime(*f.Since)
		since = &v
	}

	rows, err := s.db.QueryContext(ctx, listInvocationsQuery,
		f.Session, f.Session,
		f.Command, f.Command,
		f.Outcome, f.Outcome,
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []InvocationRecord{}
	for rows.Next() {
		rec, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}
	return records, nil
}

// scanInvocation scans a row into an InvocationRecord.
func scanInvocation(scanner interface{ Scan(dest ...any) error }) (InvocationRecord, error) {
	var rec InvocationRecord
	var sender, durationMS int64
	var argsJSON, createdAt string
	var errText sql.NullString

	if err := scanner.Scan(
		&rec.ID,
		&rec.Session,
		&rec.Scope,
		&sender,
		&rec.Command,
		&argsJSON,
		&rec.Outcome,
		&durationMS,
		&errText,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning invocation: %w", err)
	}

	rec.Sender = uint32(sender)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Error = errText.String

	if err := json.Unmarshal([]byte(argsJSON), &rec.Args); err != nil {
		return rec, fmt.Errorf("unmarshaling args: %w", err)
	}

	var err error
	rec.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return rec, fmt.Errorf("parsing timestamp: %w", err)
	}
	return rec, nil
}
