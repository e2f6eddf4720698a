// Package storage defines the persistence surface for the casino service.
package storage

import (
	"context"
	"errors"

	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/event"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Meta is the singleton ledger bookkeeping row: the pool accounting
// balance, the monotonic player counter, and the entanglement cursor.
type Meta struct {
	Jackpot      uint64
	PlayerCount  uint64
	LastResolver box.Account
}

// Commit is the unit of persistence for one committed ledger operation:
// the box records it touched, the bookkeeping row after the operation, and
// the event it emitted. Stores apply all three atomically.
type Commit struct {
	Boxes []box.Box
	Meta  Meta
	Event event.Event
}

// LedgerStore persists the box ledger and its event journal.
type LedgerStore interface {
	// ApplyCommit atomically persists one operation and returns the event
	// with its journal sequence assigned.
	ApplyCommit(ctx context.Context, commit Commit) (event.Event, error)
	// LoadSnapshot reconstructs the full aggregate state. A fresh store
	// returns an empty snapshot, not ErrNotFound.
	LoadSnapshot(ctx context.Context) (ledger.Snapshot, error)
	// GetBox returns a single box record, or ErrNotFound.
	GetBox(ctx context.Context, account box.Account) (box.Box, error)
	// ListEvents returns journal events in sequence order, newest last.
	// A non-positive limit returns everything.
	ListEvents(ctx context.Context, limit int) ([]event.Event, error)
}
