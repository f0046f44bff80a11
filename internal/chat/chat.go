// ABOUTME: Contract for the chat service transport consumed by the bot sessions
// ABOUTME: Defines Dialer, Conn, Event and identity types shared by all packages

package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrClosed is returned by Conn operations after the connection has been closed.
var ErrClosed = errors.New("chat connection closed")

// CharacterID identifies a character (player or bot) on a dimension.
type CharacterID uint32

// ChannelID identifies a public channel. Channel ids are 40-bit on the wire.
type ChannelID uint64

func (id CharacterID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id ChannelID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Account holds the credentials and endpoint used to open a connection.
type Account struct {
	Username string
	Password string
	Host     string
	Port     int
}

// Addr returns the host:port pair of the account's dimension.
func (a Account) Addr() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Identity is one character available on an account.
type Identity struct {
	ID     CharacterID
	Name   string
	Online bool
}

// EventType classifies raw inbound packets.
type EventType int

const (
	EventOther          EventType = iota // anything the bot does not act on
	EventPrivateMessage                  // tell from a character
	EventGroupMessage                    // message in the bot's private channel
	EventChannelMessage                  // message in a public channel
	EventChannelJoin                     // the bot joined a public channel
)

var eventTypeNames = map[EventType]string{
	EventOther:          "other",
	EventPrivateMessage: "private_message",
	EventGroupMessage:   "group_message",
	EventChannelMessage: "channel_message",
	EventChannelJoin:    "channel_join",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Event is one inbound packet delivered by Conn.Listen.
type Event struct {
	Type        EventType
	CharacterID CharacterID // sender of a message
	ChannelID   ChannelID   // public channel of a channel message or join
	ChannelName string      // human-readable name carried by a join
	Text        string
	Raw         string // transport-specific representation, optional
}

// String renders the event verbatim for debug logging.
func (e Event) String() string {
	if e.Raw != "" {
		return e.Raw
	}
	return fmt.Sprintf("Event{type=%s character=%d channel=%d channel_name=%q text=%q}",
		e.Type, e.CharacterID, e.ChannelID, e.ChannelName, e.Text)
}

// Actions are the group management operations commands may perform.
type Actions interface {
	InviteToGroup(ctx context.Context, id CharacterID) error
	KickFromGroup(ctx context.Context, id CharacterID) error
}

// Conn is an open session against a dimension.
type Conn interface {
	Actions

	// Characters lists the characters available on the account.
	Characters(ctx context.Context) ([]Identity, error)

	// Login selects the character to play.
	Login(ctx context.Context, id CharacterID) error

	// Listen blocks and calls fn once per inbound event, sequentially, until the
	// connection closes, fails, or ctx is cancelled. A cancelled ctx returns ctx.Err().
	Listen(ctx context.Context, fn func(Event)) error

	SendDirect(ctx context.Context, to CharacterID, text string) error
	SendGroup(ctx context.Context, owner CharacterID, text string) error
	SendBroadcast(ctx context.Context, channel ChannelID, text string) error

	Close() error
}

// Dialer opens connections. Implementations must honour ctx while connecting.
type Dialer interface {
	Dial(ctx context.Context, account Account) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, account Account) (Conn, error)

// Dial calls f(ctx, account).
func (f DialerFunc) Dial(ctx context.Context, account Account) (Conn, error) {
	return f(ctx, account)
}
