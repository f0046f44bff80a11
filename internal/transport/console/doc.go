// Package console provides a development chat transport driven by text lines.
//
// Each input line is one inbound event:
//
//	tell <sender-id> <text>               private message
//	group <sender-id> <text>              message in the bot's private group
//	clan <channel-id> <sender-id> <text>  public channel message
//	join <channel-id> <channel name>      the bot joined a public channel
//
// Outbound messages and group invitations are printed one per line. Every
// connection offers a single identity, BotID, named after the configured
// character, so a session logs in without a real chat server.
package console
