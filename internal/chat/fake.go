// ABOUTME: In-memory Dialer and Conn implementations for tests
// ABOUTME: Records every send and group action and delivers scripted events synchronously

package chat

import (
	"context"
	"errors"
	"sync"
)

// SendKind tells which Conn send operation produced a Sent record.
type SendKind string

const (
	SendDirect    SendKind = "direct"
	SendGroup     SendKind = "group"
	SendBroadcast SendKind = "broadcast"
)

// Sent is one outbound message recorded by FakeConn.
type Sent struct {
	Kind   SendKind
	Target uint64
	Text   string
}

type delivery struct {
	event Event
	done  chan struct{}
}

// FakeConn is a Conn whose inbound events are pushed by the test.
type FakeConn struct {
	mu         sync.Mutex
	identities []Identity
	loginErr   error
	sendErr    error
	loggedIn   CharacterID
	sent       []Sent
	invites    []CharacterID
	kicks      []CharacterID
	closed     bool

	events    chan delivery
	failCh    chan error
	closeCh   chan struct{}
	listening chan struct{}
	listenOne sync.Once
	closeOne  sync.Once
}

// NewFakeConn creates a FakeConn offering the given identities.
func NewFakeConn(identities ...Identity) *FakeConn {
	return &FakeConn{
		identities: identities,
		events:     make(chan delivery),
		failCh:     make(chan error, 1),
		closeCh:    make(chan struct{}),
		listening:  make(chan struct{}),
	}
}

// SetLoginError makes the next Login calls fail with err.
func (c *FakeConn) SetLoginError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginErr = err
}

// SetSendError makes every send fail with err.
func (c *FakeConn) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Characters returns the configured identities.
func (c *FakeConn) Characters(ctx context.Context) ([]Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	out := make([]Identity, len(c.identities))
	copy(out, c.identities)
	return out, nil
}

// Login records the selected character.
func (c *FakeConn) Login(ctx context.Context, id CharacterID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.loginErr != nil {
		return c.loginErr
	}
	c.loggedIn = id
	return nil
}

// LoggedIn returns the character passed to the last successful Login.
func (c *FakeConn) LoggedIn() CharacterID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Listen delivers pushed events to fn until closed, failed or cancelled.
func (c *FakeConn) Listen(ctx context.Context, fn func(Event)) error {
	c.listenOne.Do(func() { close(c.listening) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeCh:
			return ErrClosed
		case err := <-c.failCh:
			return err
		case d := <-c.events:
			fn(d.event)
			close(d.done)
		}
	}
}

// Listening is closed once Listen has been entered.
func (c *FakeConn) Listening() <-chan struct{} {
	return c.listening
}

// Deliver pushes an event into Listen and waits until fn has returned for it.
func (c *FakeConn) Deliver(ctx context.Context, evt Event) error {
	d := delivery{event: evt, done: make(chan struct{})}
	select {
	case c.events <- d:
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail makes a running Listen return err.
func (c *FakeConn) Fail(err error) {
	select {
	case c.failCh <- err:
	default:
	}
}

func (c *FakeConn) record(kind SendKind, target uint64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, Sent{Kind: kind, Target: target, Text: text})
	return nil
}

// SendDirect records a private message.
func (c *FakeConn) SendDirect(ctx context.Context, to CharacterID, text string) error {
	return c.record(SendDirect, uint64(to), text)
}

// SendGroup records a private channel message.
func (c *FakeConn) SendGroup(ctx context.Context, owner CharacterID, text string) error {
	return c.record(SendGroup, uint64(owner), text)
}

// SendBroadcast records a public channel message.
func (c *FakeConn) SendBroadcast(ctx context.Context, channel ChannelID, text string) error {
	return c.record(SendBroadcast, uint64(channel), text)
}

// InviteToGroup records an invitation.
func (c *FakeConn) InviteToGroup(ctx context.Context, id CharacterID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.invites = append(c.invites, id)
	return nil
}

// KickFromGroup records a kick.
func (c *FakeConn) KickFromGroup(ctx context.Context, id CharacterID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.kicks = append(c.kicks, id)
	return nil
}

// Sent returns a copy of all recorded outbound messages.
func (c *FakeConn) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Invites returns a copy of all recorded invitations.
func (c *FakeConn) Invites() []CharacterID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CharacterID(nil), c.invites...)
}

// Kicks returns a copy of all recorded kicks.
func (c *FakeConn) Kicks() []CharacterID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CharacterID(nil), c.kicks...)
}

// Close marks the connection closed. Safe to call multiple times.
func (c *FakeConn) Close() error {
	c.closeOne.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closeCh)
	})
	return nil
}

// Closed reports whether Close has been called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeDialer hands out FakeConns, optionally failing the first dials.
type FakeDialer struct {
	mu       sync.Mutex
	failures []error
	conns    []*FakeConn
	newConn  func() *FakeConn
	dials    int
	accounts []Account
	dialed   chan *FakeConn
}

// NewFakeDialer creates a dialer that builds a fresh connection per successful dial.
func NewFakeDialer(newConn func() *FakeConn) *FakeDialer {
	return &FakeDialer{
		newConn: newConn,
		dialed:  make(chan *FakeConn, 64),
	}
}

// FailNext queues errors returned by the next dials, in order.
func (d *FakeDialer) FailNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, errs...)
}

// Dial returns the next queued failure or a new connection.
func (d *FakeDialer) Dial(ctx context.Context, account Account) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dials++
	d.accounts = append(d.accounts, account)
	if len(d.failures) > 0 {
		err := d.failures[0]
		d.failures = d.failures[1:]
		d.mu.Unlock()
		if err == nil {
			err = errors.New("dial failed")
		}
		return nil, err
	}
	conn := d.newConn()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	select {
	case d.dialed <- conn:
	default:
	}
	return conn, nil
}

// Dials returns the number of Dial calls so far.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Accounts returns the accounts passed to Dial, in order.
func (d *FakeDialer) Accounts() []Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Account(nil), d.accounts...)
}

// Conns returns the connections created so far.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeConn(nil), d.conns...)
}

// Dialed yields each connection as it is created.
func (d *FakeDialer) Dialed() <-chan *FakeConn {
	return d.dialed
}
