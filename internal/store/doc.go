// Package store provides persistent storage for the bot's audit trail using SQLite.
//
// # Data Models
//
//   - InvocationRecord: one dispatched command with its outcome and duration
//   - SessionEvent: one supervisor state transition
//
// SQLiteStore implements Store; MockStore is an in-memory implementation for
// tests of packages that depend on the interface.
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite, no cgo) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC text so they sort lexically.
// Database file locations:
//
//   - Default: $XDG_DATA_HOME/ergo/ergo.db
//   - Testing: a file under t.TempDir() or ":memory:"
//
// # Error Handling
//
// ErrNotFound is returned when a requested entity does not exist. All methods
// accept context.Context for cancellation support.
package store
