// Package app hosts the casino application service: the serialization point
// for every ledger command and query.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	apperrors "github.com/wavefold/catbox/internal/platform/errors"
	"github.com/wavefold/catbox/internal/services/casino/bank"
	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/event"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
	"github.com/wavefold/catbox/internal/services/casino/entropy"
	"github.com/wavefold/catbox/internal/services/casino/storage"
)

// Clock supplies the current time. Production uses time.Now; tests inject a
// fixed clock.
type Clock func() time.Time

// Option configures the service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithParams overrides the ledger parameters.
func WithParams(params ledger.Params) Option {
	return func(s *Service) {
		s.params = params
	}
}

// Service executes ledger commands under a single mutex. Commands draw
// entropy and time once, run the aggregate, move funds through the bank, and
// persist the result as one storage commit; queries read the in-memory
// aggregate directly.
type Service struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	params ledger.Params

	store   storage.LedgerStore
	bank    bank.Bank
	entropy entropy.Source
	clock   Clock
}

// NewService builds a service on the given collaborators and rehydrates the
// ledger from storage.
func NewService(ctx context.Context, store storage.LedgerStore, funds bank.Bank, source entropy.Source, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if funds == nil {
		return nil, errors.New("bank is required")
	}
	if source == nil {
		return nil, errors.New("entropy source is required")
	}

	s := &Service{
		store:   store,
		bank:    funds,
		entropy: source,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailed, "load ledger snapshot", err)
	}
	restored, err := ledger.Restore(s.params, snap)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailed, "restore ledger snapshot", err)
	}
	s.ledger = restored
	return s, nil
}

// Create locks a deposit into a new box for the account. The deposited funds
// join the held pool balance.
func (s *Service) Create(ctx context.Context, account box.Account, amount uint64) (box.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	ent, err := s.entropy.Draw(ctx)
	if err != nil {
		return box.Info{}, apperrors.Wrap(apperrors.CodeUnknown, "draw entropy", err)
	}

	rollback := s.ledger.Snapshot()
	created, err := s.ledger.Create(account, amount, ent, now)
	if err != nil {
		return box.Info{}, err
	}
	if err := s.bank.Deposit(ctx, amount); err != nil {
		s.restore(rollback)
		return box.Info{}, apperrors.Wrap(apperrors.CodeBankTransferFailed, "deposit funds", err)
	}

	evt, err := event.NewBoxCreated(account, amount, now)
	if err != nil {
		s.restore(rollback)
		return box.Info{}, err
	}
	if err := s.persist(ctx, []box.Box{created}, evt); err != nil {
		s.restore(rollback)
		return box.Info{}, err
	}
	return created.InfoAt(now, s.ledger.Params().Lifespan), nil
}

// Resolve finalizes the account's box and pays out a winning one. The
// held-balance check and the transfer run inside the aggregate, before any
// state mutation.
func (s *Service) Resolve(ctx context.Context, account box.Account) (ledger.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	held, err := s.bank.Held(ctx)
	if err != nil {
		return ledger.Resolution{}, apperrors.Wrap(apperrors.CodeBankTransferFailed, "read held balance", err)
	}

	rollback := s.ledger.Snapshot()
	res, err := s.ledger.Resolve(account, now, held, func(target box.Account, amount uint64) error {
		return s.bank.Transfer(ctx, target, amount)
	})
	if err != nil {
		return ledger.Resolution{}, err
	}

	resolved, err := s.ledger.BoxOf(account)
	if err != nil {
		s.restore(rollback)
		return ledger.Resolution{}, err
	}
	evt, err := event.NewBoxResolved(account, res.HasPrize, res.Payout, now)
	if err != nil {
		s.restore(rollback)
		return ledger.Resolution{}, err
	}
	if err := s.persist(ctx, []box.Box{resolved}, evt); err != nil {
		s.restore(rollback)
		return ledger.Resolution{}, err
	}
	return res, nil
}

// SettleExpired force-settles the caller's expired box, paying half of the
// pool to a pseudo-randomly selected player.
func (s *Service) SettleExpired(ctx context.Context, caller box.Account) (ledger.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rollback := s.ledger.Snapshot()
	rel, err := s.ledger.SettleExpired(caller, now, func(target box.Account, amount uint64) error {
		return s.bank.Transfer(ctx, target, amount)
	})
	if err != nil {
		return ledger.Release{}, err
	}

	evt, err := event.NewPoolReleased(caller, rel.Target, rel.Amount, now)
	if err != nil {
		s.restore(rollback)
		return ledger.Release{}, err
	}
	if err := s.persist(ctx, nil, evt); err != nil {
		s.restore(rollback)
		return ledger.Release{}, err
	}
	return rel, nil
}

// BoxInfo returns the read-model for the account's box.
func (s *Service) BoxInfo(_ context.Context, account box.Account) (box.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.InfoOf(account, s.clock())
}

// BoxState returns the observable state of the account's box.
func (s *Service) BoxState(_ context.Context, account box.Account) (box.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.StateOf(account)
}

// PoolStatus is the pool read-model.
type PoolStatus struct {
	Jackpot      uint64
	Held         uint64
	PlayerCount  uint64
	LastResolver box.Account
}

// Pool returns the pool accounting balance alongside the actual held funds.
func (s *Service) Pool(ctx context.Context) (PoolStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, err := s.bank.Held(ctx)
	if err != nil {
		return PoolStatus{}, apperrors.Wrap(apperrors.CodeBankTransferFailed, "read held balance", err)
	}
	status := PoolStatus{
		Jackpot:     s.ledger.Jackpot(),
		Held:        held,
		PlayerCount: s.ledger.PlayerCount(),
	}
	if resolver, ok := s.ledger.LastResolver(); ok {
		status.LastResolver = resolver
	}
	return status, nil
}

// Events returns the journal, newest last. A non-positive limit returns
// everything.
func (s *Service) Events(ctx context.Context, limit int) ([]event.Event, error) {
	events, err := s.store.ListEvents(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailed, "list events", err)
	}
	return events, nil
}

// persist writes one committed operation to storage.
func (s *Service) persist(ctx context.Context, boxes []box.Box, evt event.Event) error {
	_, err := s.store.ApplyCommit(ctx, storage.Commit{
		Boxes: boxes,
		Meta:  s.meta(),
		Event: evt,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailed, "persist ledger commit", err)
	}
	return nil
}

// meta captures the aggregate bookkeeping for a storage commit.
func (s *Service) meta() storage.Meta {
	meta := storage.Meta{
		Jackpot:     s.ledger.Jackpot(),
		PlayerCount: s.ledger.PlayerCount(),
	}
	if resolver, ok := s.ledger.LastResolver(); ok {
		meta.LastResolver = resolver
	}
	return meta
}

// restore rewinds the in-memory aggregate after a failed commit. Funds moved
// by the bank before the failure stay moved; the held balance is allowed to
// run ahead of the jackpot accounting.
func (s *Service) restore(snap ledger.Snapshot) {
	restored, err := ledger.Restore(s.ledger.Params(), snap)
	if err != nil {
		log.Printf("[CASINO] rollback after failed commit: %v", err)
		return
	}
	s.ledger = restored
}
