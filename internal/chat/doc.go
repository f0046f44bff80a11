// Package chat defines the boundary between the bot and the chat service transport.
//
// # Overview
//
// The wire protocol itself (key exchange, packet framing) lives outside this
// repository. Everything the bot needs from it is captured by two interfaces:
//
//   - Dialer: opens a Conn for an Account (username, password, host, port)
//   - Conn: lists characters, logs one in, runs the blocking receive loop and
//     sends private, group and public channel messages
//
// Conn.Listen is the only intended blocking point besides reconnect backoff. It
// calls its callback once per inbound Event, sequentially, so the bot observes
// events in delivery order.
//
// # Testing
//
// FakeDialer and FakeConn are in-memory implementations:
//
//	conn := chat.NewFakeConn(chat.Identity{ID: 42, Name: "Ergo"})
//	dialer := chat.NewFakeDialer(func() *chat.FakeConn { return conn })
//
// FakeConn.Deliver pushes one event and waits until the callback returned, which
// makes dispatch results observable without sleeps.
package chat
