package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/wavefold/catbox/internal/platform/errors"
	"github.com/wavefold/catbox/internal/services/casino/bank"
	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/event"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
	"github.com/wavefold/catbox/internal/services/casino/entropy"
	"github.com/wavefold/catbox/internal/services/casino/storage/memory"
)

// entropyFor searches for host entropy that yields the wanted provisional
// bit for the account at the given player count.
func entropyFor(t *testing.T, account box.Account, count uint64, want bool) box.Entropy {
	t.Helper()
	var e box.Entropy
	for i := 0; i < 256; i++ {
		e[0] = byte(i)
		if box.ProvisionalPrize(e, account, count) == want {
			return e
		}
	}
	t.Fatalf("no entropy yields provisional bit %v for %q at count %d", want, account, count)
	return e
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testHarness struct {
	service *Service
	store   *memory.Store
	bank    *bank.MemoryBank
	source  *entropy.SequenceSource
	clock   *fakeClock
}

func newTestService(t *testing.T, seeds ...box.Entropy) *testHarness {
	t.Helper()
	h := &testHarness{
		store:  memory.NewStore(),
		bank:   bank.NewMemoryBank(0),
		source: entropy.NewSequenceSource(seeds...),
		clock:  newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	service, err := NewService(context.Background(), h.store, h.bank, h.source, WithClock(h.clock.Now))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	h.service = service
	return h
}

func TestCreateAndQuery(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, false))
	ctx := context.Background()

	info, err := h.service.Create(ctx, "acct-a", 500)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if info.Account != "acct-a" || info.Deposit != 500 || !info.Alive {
		t.Fatalf("created info = %+v, want alive acct-a with deposit 500", info)
	}
	if info.TimeRemaining != ledger.DefaultLifespan {
		t.Errorf("time remaining = %v, want %v", info.TimeRemaining, ledger.DefaultLifespan)
	}

	state, err := h.service.BoxState(ctx, "acct-a")
	if err != nil {
		t.Fatalf("BoxState returned error: %v", err)
	}
	if state != box.StateSuperposed {
		t.Errorf("state = %v, want Superposed", state)
	}

	pool, err := h.service.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool returned error: %v", err)
	}
	if pool.Jackpot != 500 || pool.Held != 500 || pool.PlayerCount != 1 || pool.LastResolver != "" {
		t.Fatalf("pool = %+v, want jackpot 500, held 500, one player, no resolver", pool)
	}

	events, err := h.service.Events(ctx, 0)
	if err != nil {
		t.Fatalf("Events returned error: %v", err)
	}
	if len(events) != 1 || events[0].Type != event.TypeBoxCreated {
		t.Fatalf("events = %+v, want single box.created", events)
	}
}

func TestCreateRejections(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, false))
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "  ", 500); !errors.Is(err, ledger.ErrAccountRequired) {
		t.Errorf("blank account error = %v, want ErrAccountRequired", err)
	}
	if _, err := h.service.Create(ctx, "acct-a", ledger.DefaultMinDeposit-1); apperrors.CodeOf(err) != apperrors.CodeBoxDepositTooSmall {
		t.Errorf("small deposit error = %v, want deposit-too-small", err)
	}
	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := h.service.Create(ctx, "acct-a", 500); !errors.Is(err, ledger.ErrBoxExists) {
		t.Errorf("duplicate error = %v, want ErrBoxExists", err)
	}

	pool, err := h.service.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool returned error: %v", err)
	}
	if pool.Jackpot != 500 || pool.PlayerCount != 1 {
		t.Fatalf("pool after rejections = %+v, want single successful create", pool)
	}
}

func TestResolveWinPaysDouble(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, true))
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	// Top up so the doubled payout is covered.
	if err := h.bank.Deposit(ctx, 500); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	res, err := h.service.Resolve(ctx, "acct-a")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !res.HasPrize || res.Payout != 1000 {
		t.Fatalf("resolution = %+v, want prize with payout 1000", res)
	}
	if got := h.bank.BalanceOf("acct-a"); got != 1000 {
		t.Errorf("account balance = %d, want 1000", got)
	}

	state, err := h.service.BoxState(ctx, "acct-a")
	if err != nil {
		t.Fatalf("BoxState returned error: %v", err)
	}
	if state != box.StateWon {
		t.Errorf("state = %v, want Won", state)
	}

	pool, err := h.service.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool returned error: %v", err)
	}
	if pool.Jackpot != 0 || pool.Held != 0 || pool.LastResolver != "acct-a" {
		t.Fatalf("pool = %+v, want drained pool with resolver acct-a", pool)
	}
}

func TestResolveLossMovesNoFunds(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, false))
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	res, err := h.service.Resolve(ctx, "acct-a")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.HasPrize || res.Payout != 0 {
		t.Fatalf("resolution = %+v, want loss with no payout", res)
	}
	if got := h.bank.BalanceOf("acct-a"); got != 0 {
		t.Errorf("account balance = %d, want 0", got)
	}

	state, err := h.service.BoxState(ctx, "acct-a")
	if err != nil {
		t.Fatalf("BoxState returned error: %v", err)
	}
	if state != box.StateLost {
		t.Errorf("state = %v, want Lost", state)
	}
	if _, err := h.service.Resolve(ctx, "acct-a"); !errors.Is(err, ledger.ErrBoxNotAlive) {
		t.Errorf("second resolve error = %v, want ErrBoxNotAlive", err)
	}
}

func TestResolveTransferFailureLeavesBoxAlive(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, true))
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := h.bank.Deposit(ctx, 500); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	h.bank.FailTransfers(errors.New("wire is down"))
	if _, err := h.service.Resolve(ctx, "acct-a"); apperrors.CodeOf(err) != apperrors.CodeBankTransferFailed {
		t.Fatalf("resolve error = %v, want transfer failure", err)
	}

	state, err := h.service.BoxState(ctx, "acct-a")
	if err != nil {
		t.Fatalf("BoxState returned error: %v", err)
	}
	if state != box.StateSuperposed {
		t.Fatalf("state after failed transfer = %v, want Superposed", state)
	}

	h.bank.FailTransfers(nil)
	res, err := h.service.Resolve(ctx, "acct-a")
	if err != nil {
		t.Fatalf("retry resolve returned error: %v", err)
	}
	if !res.HasPrize || res.Payout != 1000 {
		t.Fatalf("retry resolution = %+v, want prize with payout 1000", res)
	}
}

func TestResolveRollsBackOnPersistFailure(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, false))
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	h.store.FailCommits(errors.New("disk full"))
	if _, err := h.service.Resolve(ctx, "acct-a"); apperrors.CodeOf(err) != apperrors.CodeStorageFailed {
		t.Fatalf("resolve error = %v, want storage failure", err)
	}

	// The aggregate rewound, so the same resolve succeeds once storage
	// recovers.
	h.store.FailCommits(nil)
	res, err := h.service.Resolve(ctx, "acct-a")
	if err != nil {
		t.Fatalf("retry resolve returned error: %v", err)
	}
	if res.HasPrize {
		t.Fatalf("resolution = %+v, want loss", res)
	}

	pool, err := h.service.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool returned error: %v", err)
	}
	if pool.LastResolver != "acct-a" {
		t.Fatalf("pool = %+v, want resolver acct-a", pool)
	}
}

func TestResolveRejectsAfterExpiry(t *testing.T) {
	h := newTestService(t, entropyFor(t, "acct-a", 0, false))
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	h.clock.Advance(ledger.DefaultLifespan + time.Second)
	if _, err := h.service.Resolve(ctx, "acct-a"); !errors.Is(err, ledger.ErrBoxExpired) {
		t.Fatalf("resolve error = %v, want ErrBoxExpired", err)
	}
}

func TestSettleExpiredPaysHalfPool(t *testing.T) {
	h := newTestService(t,
		entropyFor(t, "acct-a", 0, false),
		entropyFor(t, "acct-b", 1, false),
	)
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := h.service.Create(ctx, "acct-b", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := h.service.SettleExpired(ctx, "acct-a"); !errors.Is(err, ledger.ErrBoxNotExpired) {
		t.Fatalf("settle inside window error = %v, want ErrBoxNotExpired", err)
	}

	h.clock.Advance(ledger.DefaultLifespan)
	rel, err := h.service.SettleExpired(ctx, "acct-a")
	if err != nil {
		t.Fatalf("SettleExpired returned error: %v", err)
	}
	if rel.Amount != 500 {
		t.Fatalf("release = %+v, want amount 500", rel)
	}
	if got := h.bank.BalanceOf(rel.Target); got != 500 {
		t.Errorf("target balance = %d, want 500", got)
	}

	// The caller's box is untouched; the settlement can run again over the
	// remaining pool.
	state, err := h.service.BoxState(ctx, "acct-a")
	if err != nil {
		t.Fatalf("BoxState returned error: %v", err)
	}
	if state != box.StateSuperposed {
		t.Errorf("caller state = %v, want Superposed", state)
	}
	again, err := h.service.SettleExpired(ctx, "acct-a")
	if err != nil {
		t.Fatalf("repeat SettleExpired returned error: %v", err)
	}
	if again.Amount != 250 {
		t.Fatalf("repeat release = %+v, want amount 250", again)
	}

	pool, err := h.service.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool returned error: %v", err)
	}
	if pool.Jackpot != 250 {
		t.Fatalf("pool = %+v, want jackpot 250", pool)
	}
}

func TestRehydrationPreservesState(t *testing.T) {
	h := newTestService(t,
		entropyFor(t, "acct-a", 0, false),
		entropyFor(t, "acct-b", 1, false),
	)
	ctx := context.Background()

	if _, err := h.service.Create(ctx, "acct-a", 500); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := h.service.Create(ctx, "acct-b", 300); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := h.service.Resolve(ctx, "acct-a"); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	reborn, err := NewService(ctx, h.store, h.bank, h.source, WithClock(h.clock.Now))
	if err != nil {
		t.Fatalf("NewService over existing store returned error: %v", err)
	}

	pool, err := reborn.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool returned error: %v", err)
	}
	if pool.Jackpot != 800 || pool.PlayerCount != 2 || pool.LastResolver != "acct-a" {
		t.Fatalf("rehydrated pool = %+v, want jackpot 800, two players, resolver acct-a", pool)
	}
	state, err := reborn.BoxState(ctx, "acct-a")
	if err != nil {
		t.Fatalf("BoxState returned error: %v", err)
	}
	if state != box.StateLost {
		t.Errorf("rehydrated state = %v, want Lost", state)
	}
	if _, err := reborn.Create(ctx, "acct-a", 500); !errors.Is(err, ledger.ErrBoxExists) {
		t.Errorf("duplicate create after rehydration error = %v, want ErrBoxExists", err)
	}
}

func TestQueriesUnknownAccount(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	if _, err := h.service.BoxInfo(ctx, "acct-missing"); !errors.Is(err, ledger.ErrBoxNotFound) {
		t.Errorf("BoxInfo error = %v, want ErrBoxNotFound", err)
	}
	if _, err := h.service.BoxState(ctx, "acct-missing"); !errors.Is(err, ledger.ErrBoxNotFound) {
		t.Errorf("BoxState error = %v, want ErrBoxNotFound", err)
	}
}
