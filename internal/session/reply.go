// ABOUTME: Builds repliers bound to the scope of the triggering event
// ABOUTME: Outbound messages are paced by a per-session rate limiter

package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
)

// ErrNoRoute is returned when replying into a scope that has no destination.
var ErrNoRoute = errors.New("no reply route for scope")

// Sender is the subset of chat.Conn used for replies.
type Sender interface {
	SendDirect(ctx context.Context, to chat.CharacterID, text string) error
	SendGroup(ctx context.Context, owner chat.CharacterID, text string) error
	SendBroadcast(ctx context.Context, channel chat.ChannelID, text string) error
}

// NewLimiter returns the send limiter for one session. perSecond <= 0 disables pacing.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// ReplyFor returns a replier for scope. Destinations are captured now, so a
// later reconnect or clan channel change does not redirect the reply. The
// replier does not retry; send errors are returned to the caller.
func ReplyFor(s *Session, conn Sender, scope command.Scope, limiter *rate.Limiter) command.Replier {
	var send func(ctx context.Context, text string) error

	switch scope.Kind {
	case command.ScopeDirect:
		to := scope.SenderID
		send = func(ctx context.Context, text string) error {
			return conn.SendDirect(ctx, to, text)
		}
	case command.ScopeGroup:
		owner := s.characterID
		send = func(ctx context.Context, text string) error {
			return conn.SendGroup(ctx, owner, text)
		}
	case command.ScopeBroadcast:
		channel := s.clanChannelID
		send = func(ctx context.Context, text string) error {
			return conn.SendBroadcast(ctx, channel, text)
		}
	default:
		return func(ctx context.Context, text string) error {
			return fmt.Errorf("%w: %s", ErrNoRoute, scope)
		}
	}

	return func(ctx context.Context, text string) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for send slot: %w", err)
			}
		}
		return send(ctx, text)
	}
}
