// Package bank abstracts the funds collaborator: the balance actually held
// on behalf of the pool and the transfer primitive that pays accounts.
package bank

import (
	"context"
	"fmt"
	"sync"

	"github.com/wavefold/catbox/internal/services/casino/domain/box"
)

// Bank is the funds primitive the ledger operations compose with. Transfer
// must either complete or fail without side effects; Deposit adds to the
// held balance and does not fail.
type Bank interface {
	// Deposit adds locked funds to the held balance.
	Deposit(ctx context.Context, amount uint64) error
	// Transfer pays amount out of the held balance to the account.
	Transfer(ctx context.Context, account box.Account, amount uint64) error
	// Held returns the total balance currently held for the pool.
	Held(ctx context.Context) (uint64, error)
}

// MemoryBank is an in-process Bank keeping the held balance and per-account
// payout totals. It backs tests and local simulation.
type MemoryBank struct {
	mu       sync.Mutex
	held     uint64
	accounts map[box.Account]uint64

	// failTransfers, when set, makes every Transfer fail. Tests use it to
	// exercise rollback paths.
	failTransfers error
}

// NewMemoryBank creates a bank with the given initial held balance.
func NewMemoryBank(initialHeld uint64) *MemoryBank {
	return &MemoryBank{
		held:     initialHeld,
		accounts: make(map[box.Account]uint64),
	}
}

// Deposit adds to the held balance.
func (b *MemoryBank) Deposit(_ context.Context, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held += amount
	return nil
}

// Transfer pays out of the held balance, crediting the account's running
// total.
func (b *MemoryBank) Transfer(_ context.Context, account box.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failTransfers != nil {
		return b.failTransfers
	}
	if amount > b.held {
		return fmt.Errorf("transfer %d exceeds held balance %d", amount, b.held)
	}
	b.held -= amount
	b.accounts[account] += amount
	return nil
}

// Held returns the held balance.
func (b *MemoryBank) Held(_ context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held, nil
}

// BalanceOf returns the total paid out to the account so far.
func (b *MemoryBank) BalanceOf(account box.Account) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[account]
}

// FailTransfers makes subsequent transfers fail with err; pass nil to
// restore normal behavior.
func (b *MemoryBank) FailTransfers(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failTransfers = err
}
