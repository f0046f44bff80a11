// ABOUTME: Maps raw chat events to command scopes and records clan channel discovery
// ABOUTME: Channel messages count as clan broadcasts only once the clan channel id is known

package session

import (
	"log/slog"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
)

// Classify returns the scope of evt. A channel join naming the clan channel
// records its id in s before returning, so the next event already sees it.
func Classify(s *Session, evt chat.Event, logger *slog.Logger) command.Scope {
	if logger != nil {
		logger.Debug("event received", "event", evt.String())
	}

	switch evt.Type {
	case chat.EventPrivateMessage:
		return command.Direct(evt.CharacterID)

	case chat.EventGroupMessage:
		return command.Group(evt.CharacterID)

	case chat.EventChannelMessage:
		if s.clanChannelID == 0 || evt.ChannelID != s.clanChannelID {
			return command.Ignored()
		}
		return command.Broadcast(evt.ChannelID, evt.CharacterID)

	case chat.EventChannelJoin:
		if evt.ChannelName == s.clanChannelName && evt.ChannelID != s.clanChannelID {
			if logger != nil {
				logger.Info("clan channel discovered",
					"channel_id", evt.ChannelID,
					"previous_channel_id", s.clanChannelID,
				)
			}
			s.clanChannelID = evt.ChannelID
		}
		return command.Ignored()

	default:
		return command.Ignored()
	}
}
