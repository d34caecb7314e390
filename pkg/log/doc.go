// Package log provides a structured, machine-readable event log for
// castbridge: discovery events, connection transitions, media status
// milestones and control dispatches.
//
// Events are CBOR-encoded with integer keys for compactness, so a long
// running bridge can keep an append-only file log cheaply. The Reader
// streams events back with optional filtering, which is what the
// castctl "events" command uses.
//
// Human-oriented diagnostics go through log/slog; this package is the
// durable, queryable record.
package log
