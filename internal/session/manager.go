// ABOUTME: Thread-safe table of supervisor status snapshots
// ABOUTME: Written by supervisors on every transition, read and streamed by the HTTP status API

package session

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/2389/ergo/internal/chat"
)

// Status is a snapshot of one supervisor.
type Status struct {
	Name          string           `json:"name"`
	Dimension     string           `json:"dimension"`
	Character     string           `json:"character"`
	State         State            `json:"state"`
	CharacterID   chat.CharacterID `json:"character_id"`
	ClanChannelID chat.ChannelID   `json:"clan_channel_id"`
	Attempts      int              `json:"attempts"`
	LastError     string           `json:"last_error,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Manager tracks the status of every supervisor.
type Manager struct {
	mu       sync.RWMutex
	statuses map[string]Status
	updates  *Broadcaster
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		statuses: make(map[string]Status),
		updates:  NewBroadcaster(nil),
	}
}

// Subscribe streams every later Update until ctx is cancelled or Close.
func (m *Manager) Subscribe(ctx context.Context) <-chan Status {
	ch, _ := m.updates.Subscribe(ctx)
	return ch
}

// Subscribers returns the number of live status subscriptions.
func (m *Manager) Subscribers() int {
	return m.updates.Subscribers()
}

// Close ends all status subscriptions.
func (m *Manager) Close() {
	m.updates.Close()
}

// Update stores st under st.Name.
func (m *Manager) Update(st Status) {
	m.mu.Lock()
	m.statuses[st.Name] = st
	m.mu.Unlock()

	m.updates.Publish(st)
}

// Get returns the status of one session.
func (m *Manager) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[name]
	return st, ok
}

// List returns all statuses sorted by session name.
func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := lo.Values(m.statuses)
	slices.SortFunc(list, func(a, b Status) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

// Ready reports whether at least one session is logged in.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.SomeBy(lo.Values(m.statuses), func(st Status) bool {
		return st.State == StateLoggedIn
	})
}

// CountByState returns how many sessions are in each state.
func (m *Manager) CountByState() map[State]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.CountValuesBy(lo.Values(m.statuses), func(st Status) State {
		return st.State
	})
}
