// ABOUTME: Tests for event classification and clan channel discovery.
// ABOUTME: Broadcasts must never classify as commands before the clan channel is known.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
)

func newTestSession() *Session {
	return New(Config{
		Account:   chat.Account{Username: "ergo", Host: "localhost", Port: 7101},
		Character: "Ergo",
		Dimension: "rk1",
		Prefixes:  DefaultPrefixes(),
	})
}

func clanJoin(id chat.ChannelID) chat.Event {
	return chat.Event{Type: chat.EventChannelJoin, ChannelID: id, ChannelName: DefaultClanChannelName}
}

func TestClassify_Private(t *testing.T) {
	s := newTestSession()
	scope := Classify(s, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 9, Text: "help"}, nil)
	assert.Equal(t, command.Direct(9), scope)
}

func TestClassify_Group(t *testing.T) {
	s := newTestSession()
	scope := Classify(s, chat.Event{Type: chat.EventGroupMessage, CharacterID: 9, Text: "#join"}, nil)
	assert.Equal(t, command.Group(9), scope)
}

func TestClassify_ChannelMessageBeforeClanKnown(t *testing.T) {
	s := newTestSession()

	assert.True(t, Classify(s, chat.Event{Type: chat.EventChannelMessage, ChannelID: 500, CharacterID: 9}, nil).IsIgnored())
	assert.True(t, Classify(s, chat.Event{Type: chat.EventChannelMessage, ChannelID: 0, CharacterID: 9}, nil).IsIgnored(),
		"channel id zero must not match an unknown clan channel")
}

func TestClassify_ClanJoinEnablesBroadcast(t *testing.T) {
	s := newTestSession()
	msg := chat.Event{Type: chat.EventChannelMessage, ChannelID: 500, CharacterID: 9, Text: "#help"}

	assert.True(t, Classify(s, msg, nil).IsIgnored())

	assert.True(t, Classify(s, clanJoin(500), nil).IsIgnored(), "join events are never command candidates")
	assert.Equal(t, chat.ChannelID(500), s.ClanChannelID())

	assert.Equal(t, command.Broadcast(500, 9), Classify(s, msg, nil))

	other := msg
	other.ChannelID = 501
	assert.True(t, Classify(s, other, nil).IsIgnored())
}

func TestClassify_ClanRejoin(t *testing.T) {
	s := newTestSession()

	Classify(s, clanJoin(500), nil)
	Classify(s, clanJoin(500), nil)
	assert.Equal(t, chat.ChannelID(500), s.ClanChannelID())

	Classify(s, clanJoin(600), nil)
	assert.Equal(t, chat.ChannelID(600), s.ClanChannelID(), "a different id overwrites")
}

func TestClassify_OtherChannelJoinIgnored(t *testing.T) {
	s := newTestSession()
	Classify(s, chat.Event{Type: chat.EventChannelJoin, ChannelID: 700, ChannelName: "OOC"}, nil)
	assert.Zero(t, s.ClanChannelID())
}

func TestClassify_CustomClanChannelName(t *testing.T) {
	s := New(Config{Character: "Ergo", ClanChannelName: "Team Rocket"})

	Classify(s, clanJoin(500), nil)
	assert.Zero(t, s.ClanChannelID())

	Classify(s, chat.Event{Type: chat.EventChannelJoin, ChannelID: 800, ChannelName: "Team Rocket"}, nil)
	assert.Equal(t, chat.ChannelID(800), s.ClanChannelID())
}

func TestClassify_OtherEvents(t *testing.T) {
	s := newTestSession()
	assert.True(t, Classify(s, chat.Event{Type: chat.EventOther}, nil).IsIgnored())
}

func TestSession_ResetClearsDiscoveredState(t *testing.T) {
	s := newTestSession()
	s.characterID = 42
	Classify(s, clanJoin(500), nil)

	s.reset()

	assert.Zero(t, s.CharacterID())
	assert.Zero(t, s.ClanChannelID())
	assert.Equal(t, "Ergo@rk1", s.Name())
}

func TestPrefixes_For(t *testing.T) {
	p := Prefixes{Private: "", Group: "#", Clan: "!"}
	assert.Equal(t, "", p.For(command.ScopeDirect))
	assert.Equal(t, "#", p.For(command.ScopeGroup))
	assert.Equal(t, "!", p.For(command.ScopeBroadcast))
}
