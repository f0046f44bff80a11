// ABOUTME: Line-oriented development transport that reads chat events from a reader
// ABOUTME: Implements chat.Dialer; outbound messages and group actions are printed to a writer

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/2389/ergo/internal/chat"
)

// BotID is the character id the console offers for the configured character.
const BotID chat.CharacterID = 1

// ErrInputClosed is returned by Listen once the input reached EOF.
var ErrInputClosed = errors.New("console input closed")

// Dialer hands out connections that share one input stream.
type Dialer struct {
	in        io.Reader
	character string
	logger    *slog.Logger

	outMu sync.Mutex
	out   io.Writer

	startOnce sync.Once
	stopOnce  sync.Once
	lines     chan string
	done      chan struct{}
	stop      chan struct{}
}

// NewDialer creates a console dialer reading from in and printing to out.
// Every connection offers one identity named character.
func NewDialer(in io.Reader, out io.Writer, character string, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		in:        in,
		out:       out,
		character: character,
		logger:    logger,
		lines:     make(chan string),
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Done is closed when the input reaches EOF.
func (d *Dialer) Done() <-chan struct{} {
	return d.done
}

// Close stops handing input lines to connections.
func (d *Dialer) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Dial opens a connection. The first Dial starts reading the input.
func (d *Dialer) Dial(ctx context.Context, account chat.Account) (chat.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.startOnce.Do(func() { go d.read() })
	d.printf("[connected %s as %s]", account.Addr(), account.Username)
	return &conn{dialer: d, closed: make(chan struct{})}, nil
}

func (d *Dialer) read() {
	defer close(d.done)
	scanner := bufio.NewScanner(d.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case d.lines <- line:
		case <-d.stop:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		d.logger.Error("reading console input", "error", err)
	}
}

func (d *Dialer) printf(format string, args ...any) {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	_, _ = fmt.Fprintf(d.out, format+"\n", args...)
}

type conn struct {
	dialer *Dialer

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *conn) Characters(ctx context.Context) ([]chat.Identity, error) {
	if c.isClosed() {
		return nil, chat.ErrClosed
	}
	return []chat.Identity{{ID: BotID, Name: c.dialer.character}}, nil
}

func (c *conn) Login(ctx context.Context, id chat.CharacterID) error {
	if c.isClosed() {
		return chat.ErrClosed
	}
	c.dialer.printf("[logged in as %d]", id)
	return nil
}

func (c *conn) Listen(ctx context.Context, fn func(chat.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return chat.ErrClosed
		case <-c.dialer.done:
			return ErrInputClosed
		case line := <-c.dialer.lines:
			evt, err := ParseLine(line)
			if err != nil {
				c.dialer.printf("[error] %v", err)
				continue
			}
			fn(evt)
		}
	}
}

func (c *conn) SendDirect(ctx context.Context, to chat.CharacterID, text string) error {
	return c.print("[tell -> %d] %s", to, text)
}

func (c *conn) SendGroup(ctx context.Context, owner chat.CharacterID, text string) error {
	return c.print("[group %d] %s", owner, text)
}

func (c *conn) SendBroadcast(ctx context.Context, channel chat.ChannelID, text string) error {
	return c.print("[clan %d] %s", channel, text)
}

func (c *conn) InviteToGroup(ctx context.Context, id chat.CharacterID) error {
	return c.print("[invite %d]", id)
}

func (c *conn) KickFromGroup(ctx context.Context, id chat.CharacterID) error {
	return c.print("[kick %d]", id)
}

func (c *conn) print(format string, args ...any) error {
	if c.isClosed() {
		return chat.ErrClosed
	}
	c.dialer.printf(format, args...)
	return nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// ParseLine turns one input line into an event:
//
//	tell <sender-id> <text>
//	group <sender-id> <text>
//	clan <channel-id> <sender-id> <text>
//	join <channel-id> <channel name>
func ParseLine(line string) (chat.Event, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "tell", "group":
		sender, text, err := characterAndText(rest)
		if err != nil {
			return chat.Event{}, fmt.Errorf("%s: %w", verb, err)
		}
		typ := chat.EventPrivateMessage
		if verb == "group" {
			typ = chat.EventGroupMessage
		}
		return chat.Event{Type: typ, CharacterID: sender, Text: text, Raw: line}, nil

	case "clan":
		channelStr, rest, _ := strings.Cut(rest, " ")
		channel, err := strconv.ParseUint(channelStr, 10, 40)
		if err != nil {
			return chat.Event{}, fmt.Errorf("clan: bad channel id %q", channelStr)
		}
		sender, text, err := characterAndText(strings.TrimSpace(rest))
		if err != nil {
			return chat.Event{}, fmt.Errorf("clan: %w", err)
		}
		return chat.Event{
			Type:        chat.EventChannelMessage,
			CharacterID: sender,
			ChannelID:   chat.ChannelID(channel),
			Text:        text,
			Raw:         line,
		}, nil

	case "join":
		channelStr, name, _ := strings.Cut(rest, " ")
		channel, err := strconv.ParseUint(channelStr, 10, 40)
		if err != nil {
			return chat.Event{}, fmt.Errorf("join: bad channel id %q", channelStr)
		}
		return chat.Event{
			Type:        chat.EventChannelJoin,
			ChannelID:   chat.ChannelID(channel),
			ChannelName: strings.TrimSpace(name),
			Raw:         line,
		}, nil

	default:
		return chat.Event{}, fmt.Errorf("unknown verb %q (want tell, group, clan or join)", verb)
	}
}

func characterAndText(s string) (chat.CharacterID, string, error) {
	idStr, text, _ := strings.Cut(s, " ")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("bad character id %q", idStr)
	}
	return chat.CharacterID(id), strings.TrimSpace(text), nil
}
