// Package store provides persistent session storage using SQLite.
//
// Only browser sessions live here: a server restart should not log everyone
// out, but conversation history is deliberately kept in memory and is allowed
// to die with the process.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:") in tests for an in-memory database.
//
// # Error Handling
//
// ErrNotFound is returned when a session does not exist. All methods accept
// context.Context for cancellation support.
package store
