// Package command holds the command registry, the prefix parser and the dispatcher.
//
// # Overview
//
// A Descriptor names one command and carries its Handler plus optional help.
// Descriptors are registered into an explicit Registry; registering a name twice
// replaces the earlier descriptor and logs a warning.
//
// Text becomes an Invocation through Parse, which applies the prefix configured
// for the message's Scope:
//
//	inv, ok := command.Parse("#", "#join now")
//	// inv.Name == "join", inv.Args == []string{"now"}
//
// # Dispatch
//
// Dispatcher.Dispatch resolves the invocation and runs the handler in the
// caller's goroutine, so a session processes commands strictly in order. The
// handler context is detached from the caller's cancellation and carries a
// deadline (DefaultTimeout unless configured). Results:
//
//   - unknown name: one "Unknown command" reply, outcome unknown
//   - handler error or panic: one generic failure reply, outcome failed
//   - deadline exceeded: generic failure reply, outcome timeout
//   - success: the handler's text, if any, is sent back
//
// Every outcome except a flood-guard drop is passed to the optional Recorder.
package command
