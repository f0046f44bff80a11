// Package builtins provides the commands shipped with the bot.
//
// # Commands
//
//   - help: lists every registered command, or shows the help of one
//   - join: invites the sender to the bot's private channel
//   - leave: kicks the sender from the bot's private channel
//
// # Registration
//
//	builtins.Register(registry, nil)                // all built-ins
//	builtins.Register(registry, []string{"help"})   // a selection
//
// # Help documents
//
// Detailed help lives in docs/<command>.md, embedded into the binary and
// rendered from Markdown to HTML when shown. Replies use the chat client's
// markup: Window wraps content in a clickable text window.
package builtins
