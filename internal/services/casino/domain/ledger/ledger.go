// Package ledger implements the box ledger aggregate: per-account boxes,
// the pooled jackpot, and the entanglement cursor.
//
// The aggregate is a plain in-memory state machine. Callers supply the
// current time, entropy, and a funds-transfer callback per command; commands
// validate and run every fallible step before mutating any field, so a
// rejected command leaves the ledger untouched. Serialization of commands is
// the caller's responsibility (the application service holds one mutex).
package ledger

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/wavefold/catbox/internal/platform/errors"
	"github.com/wavefold/catbox/internal/services/casino/domain/box"
)

// Defaults for ledger parameters.
const (
	// DefaultMinDeposit is the smallest accepted deposit, in atomic units.
	DefaultMinDeposit uint64 = 100
	// DefaultLifespan is the validity window of a box.
	DefaultLifespan = 7 * 24 * time.Hour
)

var (
	// ErrAccountRequired indicates a missing account identity.
	ErrAccountRequired = apperrors.New(apperrors.CodeBoxEmptyAccount, "account is required")
	// ErrDepositTooSmall indicates a deposit below the minimum.
	ErrDepositTooSmall = apperrors.New(apperrors.CodeBoxDepositTooSmall, "deposit is below the minimum")
	// ErrBoxExists indicates the account already owns a box.
	ErrBoxExists = apperrors.New(apperrors.CodeBoxAlreadyExists, "account already owns a box")
	// ErrBoxNotFound indicates no box exists for the account.
	ErrBoxNotFound = apperrors.New(apperrors.CodeNotFound, "no box for account")
	// ErrBoxNotAlive indicates the box was already resolved.
	ErrBoxNotAlive = apperrors.New(apperrors.CodeBoxNotAlive, "box is already resolved")
	// ErrBoxExpired indicates the resolution window has lapsed.
	ErrBoxExpired = apperrors.New(apperrors.CodeBoxExpired, "box validity window has lapsed")
	// ErrBoxNotExpired indicates the box is still inside its window.
	ErrBoxNotExpired = apperrors.New(apperrors.CodeBoxNotExpired, "box validity window has not lapsed")
	// ErrNoPlayers indicates settlement cannot select a target.
	ErrNoPlayers = apperrors.New(apperrors.CodeLedgerNoPlayers, "no players registered")
	// ErrInsufficientFunds indicates a payout exceeds the held balance.
	ErrInsufficientFunds = apperrors.New(apperrors.CodePoolInsufficientFunds, "payout exceeds held funds")
	// ErrTransferFailed indicates the funds collaborator rejected a payout.
	ErrTransferFailed = apperrors.New(apperrors.CodeBankTransferFailed, "funds transfer failed")
)

// TransferFunc moves funds from the pool to an account. It must either
// complete the transfer or fail without side effects.
type TransferFunc func(account box.Account, amount uint64) error

// Params configures ledger behavior.
type Params struct {
	// MinDeposit is the smallest accepted deposit.
	MinDeposit uint64
	// Lifespan is the validity window of every box.
	Lifespan time.Duration
}

// withDefaults fills zero fields with package defaults.
func (p Params) withDefaults() Params {
	if p.MinDeposit == 0 {
		p.MinDeposit = DefaultMinDeposit
	}
	if p.Lifespan <= 0 {
		p.Lifespan = DefaultLifespan
	}
	return p
}

// Ledger is the box ledger aggregate. It owns every box record, the jackpot
// accounting balance, the join-order player registry, and the entanglement
// cursor.
type Ledger struct {
	params Params

	boxes       map[box.Account]box.Box
	players     []box.Account
	playerCount uint64
	jackpot     uint64

	// lastResolver is the entanglement cursor: the most recent account to
	// successfully resolve a box, empty before the first resolution ever.
	lastResolver box.Account
}

// New creates an empty ledger with the given parameters.
func New(params Params) *Ledger {
	return &Ledger{
		params: params.withDefaults(),
		boxes:  make(map[box.Account]box.Box),
	}
}

// Params returns the effective ledger parameters.
func (l *Ledger) Params() Params {
	return l.params
}

// Resolution reports the effect of a successful resolve.
type Resolution struct {
	Account  box.Account
	HasPrize bool
	Payout   uint64
}

// Release reports the effect of a successful expiry settlement.
type Release struct {
	Caller box.Account
	Target box.Account
	Amount uint64
}

// Create locks a deposit into a new box for the account. The provisional
// outcome bit is derived from the host entropy, the account identity, and
// the player count at creation; it is fixed from this point and can only
// change through entanglement at resolve time.
func (l *Ledger) Create(account box.Account, amount uint64, entropy box.Entropy, now time.Time) (box.Box, error) {
	if strings.TrimSpace(string(account)) == "" {
		return box.Box{}, ErrAccountRequired
	}
	if amount < l.params.MinDeposit {
		return box.Box{}, apperrors.WithMetadata(apperrors.CodeBoxDepositTooSmall, "deposit is below the minimum", map[string]string{
			"deposit": strconv.FormatUint(amount, 10),
			"minimum": strconv.FormatUint(l.params.MinDeposit, 10),
		})
	}
	if l.boxes[account].Exists() {
		return box.Box{}, ErrBoxExists
	}

	created := box.Box{
		Account:   account,
		Deposit:   amount,
		CreatedAt: now.UTC(),
		Alive:     true,
		HasPrize:  box.ProvisionalPrize(entropy, account, l.playerCount),
	}

	l.boxes[account] = created
	l.players = append(l.players, account)
	l.playerCount++
	l.jackpot += amount
	return created, nil
}

// Resolve finalizes the account's box. When an entanglement cursor exists
// the stored bit is recombined with the previous resolver's identity; the
// first-ever resolution uses the creation-time bit unmodified. A winning box
// pays out twice its deposit via transfer; the held-balance check and the
// transfer itself run strictly before any mutation, so a rejected resolve
// leaves the box alive and the cursor unset, retryable later.
func (l *Ledger) Resolve(account box.Account, now time.Time, held uint64, transfer TransferFunc) (Resolution, error) {
	b, err := l.aliveBox(account)
	if err != nil {
		return Resolution{}, err
	}
	if now.After(b.ExpiresAt(l.params.Lifespan)) {
		return Resolution{}, ErrBoxExpired
	}

	final := b.HasPrize
	if l.lastResolver != "" {
		final = box.EntangledPrize(final, l.lastResolver)
	}

	var payout uint64
	if final {
		payout = 2 * b.Deposit
		if payout > held {
			return Resolution{}, apperrors.WithMetadata(apperrors.CodePoolInsufficientFunds, "payout exceeds held funds", map[string]string{
				"payout": strconv.FormatUint(payout, 10),
				"held":   strconv.FormatUint(held, 10),
			})
		}
		if err := transfer(account, payout); err != nil {
			return Resolution{}, apperrors.Wrap(apperrors.CodeBankTransferFailed, "funds transfer failed", err)
		}
	}

	b.Alive = false
	b.HasPrize = final
	l.boxes[account] = b
	l.jackpot = saturatingSub(l.jackpot, payout)
	l.lastResolver = account

	return Resolution{Account: account, HasPrize: final, Payout: payout}, nil
}

// SettleExpired force-settles the caller's own expired box by paying half
// of the current jackpot to a pseudo-randomly selected player. The caller's
// box deliberately stays marked alive; only the pool moves.
func (l *Ledger) SettleExpired(caller box.Account, now time.Time, transfer TransferFunc) (Release, error) {
	b, err := l.aliveBox(caller)
	if err != nil {
		return Release{}, err
	}
	if !b.Expired(now, l.params.Lifespan) {
		return Release{}, ErrBoxNotExpired
	}
	if l.playerCount == 0 {
		return Release{}, ErrNoPlayers
	}

	amount := l.jackpot / 2
	target := l.players[box.SettlementIndex(now, caller, l.playerCount)]
	if err := transfer(target, amount); err != nil {
		return Release{}, apperrors.Wrap(apperrors.CodeBankTransferFailed, "funds transfer failed", err)
	}

	l.jackpot -= amount
	return Release{Caller: caller, Target: target, Amount: amount}, nil
}

// aliveBox loads the account's box and rejects missing or resolved ones.
func (l *Ledger) aliveBox(account box.Account) (box.Box, error) {
	b := l.boxes[account]
	if !b.Exists() {
		return box.Box{}, ErrBoxNotFound
	}
	if !b.Alive {
		return box.Box{}, ErrBoxNotAlive
	}
	return b, nil
}

// BoxOf returns the account's box record.
func (l *Ledger) BoxOf(account box.Account) (box.Box, error) {
	b := l.boxes[account]
	if !b.Exists() {
		return box.Box{}, ErrBoxNotFound
	}
	return b, nil
}

// StateOf returns the observable state of the account's box.
func (l *Ledger) StateOf(account box.Account) (box.State, error) {
	b, err := l.BoxOf(account)
	if err != nil {
		return box.StateUnspecified, err
	}
	return b.State(), nil
}

// InfoOf returns the box read-model at the given time.
func (l *Ledger) InfoOf(account box.Account, now time.Time) (box.Info, error) {
	b, err := l.BoxOf(account)
	if err != nil {
		return box.Info{}, err
	}
	return b.InfoAt(now, l.params.Lifespan), nil
}

// Jackpot returns the pool accounting balance.
func (l *Ledger) Jackpot() uint64 {
	return l.jackpot
}

// LastResolver returns the entanglement cursor, or false when no resolution
// ever happened.
func (l *Ledger) LastResolver() (box.Account, bool) {
	if l.lastResolver == "" {
		return "", false
	}
	return l.lastResolver, true
}

// PlayerCount returns the monotonic creation counter.
func (l *Ledger) PlayerCount() uint64 {
	return l.playerCount
}

// Players returns the join-order player registry.
func (l *Ledger) Players() []box.Account {
	out := make([]box.Account, len(l.players))
	copy(out, l.players)
	return out
}

// saturatingSub subtracts b from a, floored at zero. The jackpot accounting
// balance can run below a payout when the held balance exceeds it (external
// top-ups); the pool invariant keeps it non-negative.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
