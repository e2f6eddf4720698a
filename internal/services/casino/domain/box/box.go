package box

import "time"

// Account identifies a player. Accounts are opaque, stable strings with a
// total lexicographic order.
type Account string

// String implements fmt.Stringer.
func (a Account) String() string {
	return string(a)
}

// State describes the externally observable lifecycle of a box.
type State int

const (
	// StateUnspecified represents an invalid state value.
	StateUnspecified State = iota
	// StateSuperposed indicates the box is unresolved: an outcome is stored
	// but not yet finalized or paid.
	StateSuperposed
	// StateWon indicates the box resolved with a prize.
	StateWon
	// StateLost indicates the box resolved without a prize.
	StateLost
)

func (s State) String() string {
	switch s {
	case StateSuperposed:
		return "Superposed"
	case StateWon:
		return "Won"
	case StateLost:
		return "Lost"
	default:
		return "Unspecified"
	}
}

// Box is the per-account record holding a locked deposit and its outcome.
//
// A zero Deposit means no box exists for the account; the field doubles as
// the existence sentinel, which makes "one box per account, forever" a
// permanent constraint. HasPrize is fixed at creation and may be reassigned
// exactly once during resolution; while Alive is true it is stored but not
// observable.
type Box struct {
	Account   Account
	Deposit   uint64
	CreatedAt time.Time
	Alive     bool
	HasPrize  bool
}

// Exists reports whether the record represents a created box.
func (b Box) Exists() bool {
	return b.Deposit > 0
}

// State returns the observable state of the box.
func (b Box) State() State {
	if !b.Exists() {
		return StateUnspecified
	}
	if b.Alive {
		return StateSuperposed
	}
	if b.HasPrize {
		return StateWon
	}
	return StateLost
}

// ExpiresAt returns the end of the box's validity window.
func (b Box) ExpiresAt(lifespan time.Duration) time.Time {
	return b.CreatedAt.Add(lifespan)
}

// Expired reports whether the validity window has lapsed at now.
func (b Box) Expired(now time.Time, lifespan time.Duration) bool {
	return !now.Before(b.ExpiresAt(lifespan))
}

// TimeRemaining returns how long the box stays resolvable, floored at zero.
func (b Box) TimeRemaining(now time.Time, lifespan time.Duration) time.Duration {
	remaining := b.ExpiresAt(lifespan).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Info is the read-model returned by box queries.
type Info struct {
	Account       Account
	Deposit       uint64
	CreatedAt     time.Time
	Alive         bool
	TimeRemaining time.Duration
}

// InfoAt builds the query read-model for the box at the given time.
func (b Box) InfoAt(now time.Time, lifespan time.Duration) Info {
	return Info{
		Account:       b.Account,
		Deposit:       b.Deposit,
		CreatedAt:     b.CreatedAt,
		Alive:         b.Alive,
		TimeRemaining: b.TimeRemaining(now, lifespan),
	}
}
