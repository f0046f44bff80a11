// ABOUTME: Windowed flood guard that drops repeated identical commands.
// ABOUTME: Keys are (session, sender, text) tuples remembered for a fixed window.

package dedupe

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMaxSize bounds the number of remembered keys.
const DefaultMaxSize = 10_000

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Guard remembers keys for a window. Seen reports whether a key repeats inside it.
// Oldest keys are evicted first once the guard is full.
type Guard struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest at front
	window  time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// Option customises a Guard.
type Option func(*Guard)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

// New creates a guard with the given window and starts its sweeper goroutine.
// Call Close to stop it.
func New(window time.Duration, opts ...Option) *Guard {
	g := &Guard{
		seen:    make(map[string]*entry),
		order:   list.New(),
		window:  window,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.sweep()
	return g
}

// Key builds the guard key for one message.
func Key(session string, sender uint32, text string) string {
	var b strings.Builder
	b.WriteString(session)
	b.WriteByte(0)
	b.WriteString(strconv.FormatUint(uint64(sender), 10))
	b.WriteByte(0)
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

// Seen atomically checks key and marks it. Returns true when key was already
// marked within the window, in which case the original mark is kept so a
// steady flood cannot extend itself.
func (g *Guard) Seen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.seen[key]; ok {
		if now.Sub(e.seenAt) < g.window {
			return true
		}
		e.seenAt = now
		g.order.MoveToBack(e.element)
		return false
	}

	if len(g.seen) >= g.maxSize {
		g.evictOldest()
	}
	g.seen[key] = &entry{seenAt: now, element: g.order.PushBack(key)}
	return false
}

// Len returns the number of remembered keys, expired or not.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// evictOldest must be called with mu held.
func (g *Guard) evictOldest() {
	front := g.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	g.order.Remove(front)
	delete(g.seen, key)
}

func (g *Guard) sweep() {
	interval := g.window
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.expire()
		case <-g.done:
			return
		}
	}
}

// expire drops every key older than the window.
func (g *Guard) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for front := g.order.Front(); front != nil; front = g.order.Front() {
		key, _ := front.Value.(string)
		e := g.seen[key]
		if e == nil || now.Sub(e.seenAt) < g.window {
			return
		}
		g.order.Remove(front)
		delete(g.seen, key)
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
