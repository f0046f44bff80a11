// ABOUTME: join and leave commands managing membership of the bot's private channel
// ABOUTME: Both act on the sender and produce no chat reply

package builtins

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/ergo/internal/command"
)

// ErrNoChat indicates a request without chat actions attached.
var ErrNoChat = errors.New("no chat actions available")

// Join creates the join command.
func Join() command.Descriptor {
	return command.Descriptor{
		Name:        "join",
		Description: "Join private channel",
		Handler:     joinHandler,
		Help:        doc("join"),
	}
}

// Leave creates the leave command.
func Leave() command.Descriptor {
	return command.Descriptor{
		Name:        "leave",
		Description: "Leave private channel",
		Handler:     leaveHandler,
		Help:        doc("leave"),
	}
}

func joinHandler(ctx context.Context, req *command.Request) (string, error) {
	if req.Chat == nil {
		return "", ErrNoChat
	}
	if err := req.Chat.InviteToGroup(ctx, req.Sender); err != nil {
		return "", fmt.Errorf("inviting %d: %w", req.Sender, err)
	}
	return "", nil
}

func leaveHandler(ctx context.Context, req *command.Request) (string, error) {
	if req.Chat == nil {
		return "", ErrNoChat
	}
	if err := req.Chat.KickFromGroup(ctx, req.Sender); err != nil {
		return "", fmt.Errorf("kicking %d: %w", req.Sender, err)
	}
	return "", nil
}
