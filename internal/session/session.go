// ABOUTME: Per-account session state owned by exactly one supervisor goroutine
// ABOUTME: Tracks the logged-in character and the discovered clan channel for one connection attempt

package session

import (
	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
)

// DefaultClanChannelName is the label the chat server gives the organisation channel.
const DefaultClanChannelName = "Clan (name unknown)"

// Prefixes holds the command prefix of each message scope. An empty prefix
// makes every message in that scope a command candidate.
type Prefixes struct {
	Private string
	Group   string
	Clan    string
}

// DefaultPrefixes returns the prefixes used when none are configured.
func DefaultPrefixes() Prefixes {
	return Prefixes{Private: "", Group: "#", Clan: "#"}
}

// For returns the prefix of a scope kind.
func (p Prefixes) For(kind command.ScopeKind) string {
	switch kind {
	case command.ScopeGroup:
		return p.Group
	case command.ScopeBroadcast:
		return p.Clan
	default:
		return p.Private
	}
}

// Config describes one account to supervise.
type Config struct {
	Account         chat.Account
	Character       string
	Dimension       string
	Prefixes        Prefixes
	ClanChannelName string
}

// Session is the mutable state of one supervised account. Only the owning
// supervisor goroutine mutates it; command handlers receive it as a
// command.SessionInfo between events, never concurrently with a mutation.
type Session struct {
	account         chat.Account
	characterName   string
	dimension       string
	prefixes        Prefixes
	clanChannelName string

	characterID   chat.CharacterID
	clanChannelID chat.ChannelID
}

// New creates a session from its configuration.
func New(cfg Config) *Session {
	clanName := cfg.ClanChannelName
	if clanName == "" {
		clanName = DefaultClanChannelName
	}
	return &Session{
		account:         cfg.Account,
		characterName:   cfg.Character,
		dimension:       cfg.Dimension,
		prefixes:        cfg.Prefixes,
		clanChannelName: clanName,
	}
}

// Name identifies the session in logs and status output.
func (s *Session) Name() string {
	if s.dimension == "" {
		return s.characterName
	}
	return s.characterName + "@" + s.dimension
}

// Account returns the immutable connection settings.
func (s *Session) Account() chat.Account { return s.account }

// Dimension returns the configured dimension key.
func (s *Session) Dimension() string { return s.dimension }

// CharacterName returns the configured character name.
func (s *Session) CharacterName() string { return s.characterName }

// CharacterID returns the logged-in character, or 0 before login.
func (s *Session) CharacterID() chat.CharacterID { return s.characterID }

// ClanChannelID returns the discovered clan channel, or 0 while unknown.
func (s *Session) ClanChannelID() chat.ChannelID { return s.clanChannelID }

// Prefix returns the command prefix for a scope kind.
func (s *Session) Prefix(kind command.ScopeKind) string { return s.prefixes.For(kind) }

// reset clears everything discovered during a connection attempt.
func (s *Session) reset() {
	s.characterID = 0
	s.clanChannelID = 0
}

var _ command.SessionInfo = (*Session)(nil)
