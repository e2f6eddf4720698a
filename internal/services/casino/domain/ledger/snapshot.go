package ledger

import (
	"fmt"

	"github.com/wavefold/catbox/internal/services/casino/domain/box"
)

// Snapshot is the persistent form of the ledger aggregate.
type Snapshot struct {
	Boxes []box.Box
	// Players is the join-order registry; its order is part of the
	// settlement-target selection and must survive round-trips.
	Players      []box.Account
	PlayerCount  uint64
	Jackpot      uint64
	LastResolver box.Account
}

// Snapshot exports the aggregate state. Boxes follow player join order.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Players:      make([]box.Account, len(l.players)),
		PlayerCount:  l.playerCount,
		Jackpot:      l.jackpot,
		LastResolver: l.lastResolver,
	}
	copy(snap.Players, l.players)
	snap.Boxes = make([]box.Box, 0, len(l.boxes))
	for _, account := range l.players {
		snap.Boxes = append(snap.Boxes, l.boxes[account])
	}
	return snap
}

// Restore rebuilds a ledger from a snapshot.
func Restore(params Params, snap Snapshot) (*Ledger, error) {
	l := New(params)
	if uint64(len(snap.Players)) != snap.PlayerCount {
		return nil, fmt.Errorf("snapshot player registry has %d entries for counter %d", len(snap.Players), snap.PlayerCount)
	}
	for _, b := range snap.Boxes {
		if !b.Exists() {
			return nil, fmt.Errorf("snapshot contains a box without deposit for %q", b.Account)
		}
		if _, dup := l.boxes[b.Account]; dup {
			return nil, fmt.Errorf("snapshot contains duplicate box for %q", b.Account)
		}
		l.boxes[b.Account] = b
	}
	l.players = make([]box.Account, len(snap.Players))
	copy(l.players, snap.Players)
	l.playerCount = snap.PlayerCount
	l.jackpot = snap.Jackpot
	l.lastResolver = snap.LastResolver
	return l, nil
}
