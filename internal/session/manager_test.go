// ABOUTME: Tests for the session status table.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Ready())
	assert.Empty(t, m.List())

	m.Update(Status{Name: "Zed@rk2", State: StateFaulted})
	m.Update(Status{Name: "Ergo@rk1", State: StateConnecting})
	assert.False(t, m.Ready())

	m.Update(Status{Name: "Ergo@rk1", State: StateLoggedIn})
	assert.True(t, m.Ready())

	list := m.List()
	assert.Len(t, list, 2)
	assert.Equal(t, "Ergo@rk1", list[0].Name)
	assert.Equal(t, "Zed@rk2", list[1].Name)

	st, ok := m.Get("Zed@rk2")
	assert.True(t, ok)
	assert.Equal(t, StateFaulted, st.State)

	assert.Equal(t, map[State]int{StateLoggedIn: 1, StateFaulted: 1}, m.CountByState())
}

func TestManager_SubscribeStreamsUpdates(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Subscribe(ctx)
	assert.Equal(t, 1, m.Subscribers())

	m.Update(Status{Name: "Ergo@rk1", State: StateConnecting})
	m.Update(Status{Name: "Ergo@rk1", State: StateLoggedIn})

	assert.Equal(t, StateConnecting, (<-ch).State)
	assert.Equal(t, StateLoggedIn, (<-ch).State)

	m.Close()
	_, open := <-ch
	assert.False(t, open, "Close ends subscriptions")

	_, open = <-m.Subscribe(ctx)
	assert.False(t, open, "subscribing after Close yields a closed channel")
}

func TestBroadcaster_UnsubscribeOnCancel(t *testing.T) {
	b := NewBroadcaster(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := b.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, time.Millisecond)
	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	b.Publish(Status{Name: "Ergo@rk1"})
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, id := b.Subscribe(ctx)
	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(Status{Name: "Ergo@rk1", Attempts: i})
	}
	assert.Len(t, ch, subscriberBufferSize)

	b.Unsubscribe(id)
	b.Unsubscribe(id)
	assert.Equal(t, 0, b.Subscribers())
}
