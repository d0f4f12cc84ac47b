// Package logstore implements the log/session store (C11): an append-only
// log of LogEntry, capped at a configured maximum, with two interchangeable
// backends chosen once at process startup.
package logstore

import (
	"context"

	"gazette/internal/core"
)

// Store is the log/session store contract. Both backends satisfy it
// identically; callers never branch on which one is live.
type Store interface {
	// Append adds one entry, trimming the oldest entry if the store is at
	// capacity.
	Append(ctx context.Context, entry core.LogEntry) error

	// ListBySession returns up to limit entries for sessionID, oldest
	// first; when more match, the most recent limit are kept. limit <= 0
	// means unbounded.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]core.LogEntry, error)

	// DeleteBySession drops every entry for sessionID, or every entry if
	// sessionID is empty, and reports how many were removed.
	DeleteBySession(ctx context.Context, sessionID string) (int, error)

	Close() error
}
