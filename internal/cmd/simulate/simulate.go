// Package simulate runs a deterministic local game against in-memory
// collaborators, useful for eyeballing payout behavior without a server.
package simulate

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	entrypoint "github.com/wavefold/catbox/internal/platform/cmd"
	"github.com/wavefold/catbox/internal/services/casino/app"
	"github.com/wavefold/catbox/internal/services/casino/bank"
	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
	"github.com/wavefold/catbox/internal/services/casino/storage/memory"
)

// Config holds simulate command configuration.
type Config struct {
	Players int    `env:"CATBOX_SIM_PLAYERS" envDefault:"10"`
	Deposit uint64 `env:"CATBOX_SIM_DEPOSIT" envDefault:"500"`
	Seed    int64  `env:"CATBOX_SIM_SEED" envDefault:"1"`
	Held    uint64 `env:"CATBOX_SIM_HELD"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Players, "players", cfg.Players, "Number of simulated players")
	fs.Uint64Var(&cfg.Deposit, "deposit", cfg.Deposit, "Deposit locked by each player")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Deterministic entropy seed")
	fs.Uint64Var(&cfg.Held, "held", cfg.Held, "Extra held funds seeded into the pool")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// seededSource draws reproducible host entropy from a seeded PRNG.
type seededSource struct {
	rng *rand.Rand
}

func (s *seededSource) Draw(_ context.Context) (box.Entropy, error) {
	var e box.Entropy
	if _, err := s.rng.Read(e[:]); err != nil {
		return box.Entropy{}, fmt.Errorf("read seeded entropy: %w", err)
	}
	return e, nil
}

// Summary reports the outcome of a simulation run.
type Summary struct {
	Players   int
	Wins      int
	Losses    int
	Jackpot   uint64
	Held      uint64
	Released  uint64
	Superpose int
}

// Run executes a full simulation and logs a summary.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulate, func(ctx context.Context) error {
		summary, err := Play(ctx, cfg)
		if err != nil {
			return err
		}
		log.Printf("players=%d wins=%d losses=%d unresolved=%d jackpot=%d held=%d released=%d",
			summary.Players, summary.Wins, summary.Losses, summary.Superpose,
			summary.Jackpot, summary.Held, summary.Released)
		return nil
	})
}

// Play runs the simulation and returns its summary: every player locks a
// deposit, all but one resolve inside the window, and the last player
// force-settles an expired box.
func Play(ctx context.Context, cfg Config) (Summary, error) {
	if cfg.Players < 2 {
		return Summary{}, errors.New("simulation needs at least two players")
	}
	if cfg.Deposit < ledger.DefaultMinDeposit {
		return Summary{}, fmt.Errorf("deposit must be at least %d", ledger.DefaultMinDeposit)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	funds := bank.NewMemoryBank(cfg.Held)
	service, err := app.NewService(ctx, memory.NewStore(), funds, &seededSource{
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, app.WithClock(clock))
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Players: cfg.Players}
	accounts := make([]box.Account, cfg.Players)
	for i := range accounts {
		accounts[i] = box.Account(fmt.Sprintf("player-%03d", i))
		if _, err := service.Create(ctx, accounts[i], cfg.Deposit); err != nil {
			return Summary{}, fmt.Errorf("create box for %s: %w", accounts[i], err)
		}
	}

	// All but the last player resolve inside their window. Insufficient
	// funds just leaves a box unresolved, like a real pool running dry.
	for _, account := range accounts[:len(accounts)-1] {
		res, err := service.Resolve(ctx, account)
		if err != nil {
			if isPoolDry(err) {
				summary.Superpose++
				continue
			}
			return Summary{}, fmt.Errorf("resolve box for %s: %w", account, err)
		}
		if res.HasPrize {
			summary.Wins++
		} else {
			summary.Losses++
		}
	}

	// The last player sleeps through the window and force-settles.
	now = now.Add(ledger.DefaultLifespan)
	release, err := service.SettleExpired(ctx, accounts[len(accounts)-1])
	if err != nil {
		return Summary{}, fmt.Errorf("settle expired box: %w", err)
	}
	summary.Released = release.Amount
	summary.Superpose++

	pool, err := service.Pool(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary.Jackpot = pool.Jackpot
	summary.Held = pool.Held
	return summary, nil
}

func isPoolDry(err error) bool {
	return errors.Is(err, ledger.ErrInsufficientFunds)
}
