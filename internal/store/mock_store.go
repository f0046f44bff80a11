// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	invocations []InvocationRecord // append order
	events      []SessionEvent
	closed      bool

	// Err, when set, is returned by every write.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// RecordInvocation stores a copy of rec.
func (m *MockStore) RecordInvocation(ctx context.Context, rec *InvocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.invocations = append(m.invocations, *rec)
	return nil
}

// GetInvocation retrieves an invocation by ID.
func (m *MockStore) GetInvocation(ctx context.Context, id string) (*InvocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := lo.Find(m.invocations, func(r InvocationRecord) bool { return r.ID == id })
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// ListInvocations returns matching invocations, newest first.
func (m *MockStore) ListInvocations(ctx context.Context, f InvocationFilter) ([]InvocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := lo.Filter(newestFirst(m.invocations), func(r InvocationRecord, _ int) bool {
		return (f.Session == nil || r.Session == *f.Session) &&
			(f.Command == nil || r.Command == *f.Command) &&
			(f.Outcome == nil || r.Outcome == *f.Outcome) &&
			(f.Since == nil || !r.CreatedAt.Before(*f.Since))
	})

	if limit := normalizeLimit(f.Limit); len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// RecordSessionEvent stores a copy of evt.
func (m *MockStore) RecordSessionEvent(ctx context.Context, evt *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, *evt)
	return nil
}

// ListSessionEvents returns the events of one session, newest first.
func (m *MockStore) ListSessionEvents(ctx context.Context, session string, limit int) ([]SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := lo.Filter(newestFirst(m.events), func(e SessionEvent, _ int) bool {
		return e.Session == session
	})
	if limit = normalizeLimit(limit); len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func newestFirst[T any](in []T) []T {
	out := slices.Clone(in)
	slices.Reverse(out)
	return out
}

var _ Store = (*MockStore)(nil)
