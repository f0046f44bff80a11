// Package session keeps one chat account connected and routes its events to commands.
//
// # Overview
//
// A Session holds what one connection attempt discovers: the logged-in
// character id and the clan channel id. Both are reset before every attempt.
// Only the owning Supervisor goroutine mutates a Session, so it has no lock.
//
// The Supervisor walks connecting → authenticating → selecting_identity →
// logged_in and, on any transient failure, goes to faulted, waits for the
// backoff delay and starts over. Two conditions are fatal and end Run with an
// error: the configured character is not on the account (ErrUnknownCharacter),
// or it is already online (ErrCharacterOnline). Cancelling the context is the
// only way Run returns nil.
//
// While logged in, each event is handled in the receive loop's goroutine:
//
//	Classify → command.Parse (per-scope prefix) → command.Dispatcher.Dispatch
//
// with a recover boundary around the whole pipeline. Replies go through
// ReplyFor, which captures the destination when the event is classified.
//
// # Status
//
// Manager collects a Status snapshot per supervisor for the HTTP API.
package session
