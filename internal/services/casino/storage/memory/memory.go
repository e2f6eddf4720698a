// Package memory provides an in-memory casino storage implementation for
// tests and local simulation.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/event"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
	"github.com/wavefold/catbox/internal/services/casino/storage"
)

// Store keeps the box ledger and its event journal in process memory.
type Store struct {
	mu      sync.Mutex
	boxes   map[box.Account]box.Box
	players []box.Account
	meta    storage.Meta
	events  []event.Event
	failErr error
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{boxes: make(map[box.Account]box.Box)}
}

// FailCommits makes every subsequent ApplyCommit return err. Passing nil
// restores normal behavior.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// ApplyCommit records one operation: box rows, bookkeeping, and the journal
// event with its assigned sequence.
func (s *Store) ApplyCommit(ctx context.Context, commit storage.Commit) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return event.Event{}, s.failErr
	}
	if !commit.Event.Type.IsValid() {
		return event.Event{}, fmt.Errorf("commit event type %q is invalid", commit.Event.Type)
	}
	for _, b := range commit.Boxes {
		if !b.Exists() {
			return event.Event{}, fmt.Errorf("commit contains a box without deposit for %q", b.Account)
		}
	}

	for _, b := range commit.Boxes {
		if _, seen := s.boxes[b.Account]; !seen {
			s.players = append(s.players, b.Account)
		}
		s.boxes[b.Account] = b
	}
	s.meta = commit.Meta

	stored := commit.Event
	stored.Seq = uint64(len(s.events) + 1)
	s.events = append(s.events, stored)
	return stored, nil
}

// LoadSnapshot reconstructs the aggregate state in player join order.
func (s *Store) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ledger.Snapshot{
		Players:      make([]box.Account, len(s.players)),
		PlayerCount:  s.meta.PlayerCount,
		Jackpot:      s.meta.Jackpot,
		LastResolver: s.meta.LastResolver,
	}
	copy(snap.Players, s.players)
	snap.Boxes = make([]box.Box, 0, len(s.players))
	for _, account := range s.players {
		snap.Boxes = append(snap.Boxes, s.boxes[account])
	}
	return snap, nil
}

// GetBox returns a single box record, or storage.ErrNotFound.
func (s *Store) GetBox(ctx context.Context, account box.Account) (box.Box, error) {
	if err := ctx.Err(); err != nil {
		return box.Box{}, err
	}
	if strings.TrimSpace(string(account)) == "" {
		return box.Box{}, fmt.Errorf("account is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boxes[account]
	if !ok {
		return box.Box{}, storage.ErrNotFound
	}
	return b, nil
}

// ListEvents returns journal events in sequence order, newest last.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.events)
	if limit > 0 && limit < count {
		count = limit
	}
	events := make([]event.Event, count)
	copy(events, s.events[:count])
	return events, nil
}

var _ storage.LedgerStore = (*Store)(nil)
