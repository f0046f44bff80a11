// ABOUTME: Store interface and data types for ergo persistence
// ABOUTME: Defines invocation and session event records kept for auditing

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Invocation outcomes accepted by the invocations table.
const (
	OutcomeOK      = "ok"
	OutcomeUnknown = "unknown"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
)

// InvocationRecord is one dispatched command.
type InvocationRecord struct {
	ID        string // UUID v4, generated when empty
	Session   string // character@dimension
	Scope     string // direct, group, broadcast
	Sender    uint32
	Command   string
	Args      []string
	Outcome   string
	Duration  time.Duration
	Error     string
	CreatedAt time.Time
}

// InvocationFilter narrows ListInvocations.
type InvocationFilter struct {
	Session *string
	Command *string
	Outcome *string
	Since   *time.Time
	Limit   int // default 100, max 1000
}

// SessionEvent is one supervisor state transition.
type SessionEvent struct {
	ID        string
	Session   string
	State     string
	Detail    string
	CreatedAt time.Time
}

// Store persists the audit trail of a running bot.
type Store interface {
	RecordInvocation(ctx context.Context, rec *InvocationRecord) error
	GetInvocation(ctx context.Context, id string) (*InvocationRecord, error)
	ListInvocations(ctx context.Context, f InvocationFilter) ([]InvocationRecord, error)

	RecordSessionEvent(ctx context.Context, evt *SessionEvent) error
	ListSessionEvents(ctx context.Context, session string, limit int) ([]SessionEvent, error)

	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
