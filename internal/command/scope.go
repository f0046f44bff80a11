// ABOUTME: Conversational scope of an inbound event (direct, group, clan broadcast, ignored)
// ABOUTME: Scopes are derived per event and never persisted

package command

import (
	"fmt"

	"github.com/2389/ergo/internal/chat"
)

// ScopeKind is the variant tag of a Scope.
type ScopeKind int

const (
	ScopeIgnored   ScopeKind = iota // not a command candidate
	ScopeDirect                     // private message to the bot
	ScopeGroup                      // the bot's private channel
	ScopeBroadcast                  // the organisation (clan) channel
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeDirect:
		return "direct"
	case ScopeGroup:
		return "group"
	case ScopeBroadcast:
		return "broadcast"
	default:
		return "ignored"
	}
}

// Scope identifies where an event occurred.
// SenderID is set for every message scope; ChannelID only for ScopeBroadcast.
type Scope struct {
	Kind      ScopeKind
	SenderID  chat.CharacterID
	ChannelID chat.ChannelID
}

// Direct returns the scope of a private message from sender.
func Direct(sender chat.CharacterID) Scope {
	return Scope{Kind: ScopeDirect, SenderID: sender}
}

// Group returns the scope of a message in the bot's private channel.
func Group(sender chat.CharacterID) Scope {
	return Scope{Kind: ScopeGroup, SenderID: sender}
}

// Broadcast returns the scope of a message in the clan channel.
func Broadcast(channel chat.ChannelID, sender chat.CharacterID) Scope {
	return Scope{Kind: ScopeBroadcast, SenderID: sender, ChannelID: channel}
}

// Ignored returns the scope of events the bot does not act on.
func Ignored() Scope {
	return Scope{Kind: ScopeIgnored}
}

// IsIgnored reports whether the scope carries no command candidate.
func (s Scope) IsIgnored() bool {
	return s.Kind == ScopeIgnored
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeDirect, ScopeGroup:
		return fmt.Sprintf("%s(%d)", s.Kind, s.SenderID)
	case ScopeBroadcast:
		return fmt.Sprintf("%s(%d,%d)", s.Kind, s.ChannelID, s.SenderID)
	default:
		return s.Kind.String()
	}
}
