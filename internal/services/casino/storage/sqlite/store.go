// Package sqlite provides a SQLite-backed casino storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/wavefold/catbox/internal/platform/storage/sqlitemigrate"
	"github.com/wavefold/catbox/internal/services/casino/domain/box"
	"github.com/wavefold/catbox/internal/services/casino/domain/event"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
	"github.com/wavefold/catbox/internal/services/casino/storage"
	"github.com/wavefold/catbox/internal/services/casino/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists the box ledger and its event journal in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite casino store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ApplyCommit persists one operation in a single transaction: the box rows
// the operation touched, the bookkeeping row, and the journal event. The
// event is returned with its assigned sequence.
func (s *Store) ApplyCommit(ctx context.Context, commit storage.Commit) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if !commit.Event.Type.IsValid() {
		return event.Event{}, fmt.Errorf("commit event type %q is invalid", commit.Event.Type)
	}
	for _, b := range commit.Boxes {
		if !b.Exists() {
			return event.Event{}, fmt.Errorf("commit contains a box without deposit for %q", b.Account)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin commit tx: %w", err)
	}

	for _, b := range commit.Boxes {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO boxes (account, deposit, created_at, alive, has_prize)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (account) DO UPDATE SET
			   deposit = excluded.deposit,
			   created_at = excluded.created_at,
			   alive = excluded.alive,
			   has_prize = excluded.has_prize`,
			string(b.Account),
			int64(b.Deposit),
			toMillis(b.CreatedAt),
			boolToInt(b.Alive),
			boolToInt(b.HasPrize),
		); err != nil {
			_ = tx.Rollback()
			return event.Event{}, fmt.Errorf("upsert box %q: %w", b.Account, err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO ledger_meta (id, jackpot, player_count, last_resolver)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   jackpot = excluded.jackpot,
		   player_count = excluded.player_count,
		   last_resolver = excluded.last_resolver`,
		int64(commit.Meta.Jackpot),
		int64(commit.Meta.PlayerCount),
		string(commit.Meta.LastResolver),
	); err != nil {
		_ = tx.Rollback()
		return event.Event{}, fmt.Errorf("upsert ledger meta: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO events (ts, type, account, payload) VALUES (?, ?, ?, ?)`,
		toMillis(commit.Event.Timestamp),
		string(commit.Event.Type),
		string(commit.Event.Account),
		string(commit.Event.PayloadJSON),
	)
	if err != nil {
		_ = tx.Rollback()
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return event.Event{}, fmt.Errorf("event sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit tx: %w", err)
	}

	stored := commit.Event
	stored.Seq = uint64(seq)
	return stored, nil
}

// LoadSnapshot reconstructs the full aggregate state. Boxes and the player
// registry follow join order. A fresh database yields an empty snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return ledger.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	var snap ledger.Snapshot
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT jackpot, player_count, last_resolver FROM ledger_meta WHERE id = 1`,
	)
	var jackpot, playerCount int64
	var lastResolver string
	if err := row.Scan(&jackpot, &playerCount, &lastResolver); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Snapshot{}, nil
		}
		return ledger.Snapshot{}, fmt.Errorf("load ledger meta: %w", err)
	}
	snap.Jackpot = uint64(jackpot)
	snap.PlayerCount = uint64(playerCount)
	snap.LastResolver = box.Account(lastResolver)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT account, deposit, created_at, alive, has_prize
		   FROM boxes
		  ORDER BY join_pos ASC`,
	)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load boxes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return ledger.Snapshot{}, fmt.Errorf("load boxes: %w", err)
		}
		snap.Boxes = append(snap.Boxes, b)
		snap.Players = append(snap.Players, b.Account)
	}
	if err := rows.Err(); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load boxes: %w", err)
	}
	return snap, nil
}

// GetBox returns a single box record, or storage.ErrNotFound.
func (s *Store) GetBox(ctx context.Context, account box.Account) (box.Box, error) {
	if err := ctx.Err(); err != nil {
		return box.Box{}, err
	}
	if s == nil || s.sqlDB == nil {
		return box.Box{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(account)) == "" {
		return box.Box{}, fmt.Errorf("account is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT account, deposit, created_at, alive, has_prize
		   FROM boxes
		  WHERE account = ?`,
		string(account),
	)
	b, err := scanBox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return box.Box{}, storage.ErrNotFound
		}
		return box.Box{}, fmt.Errorf("get box: %w", err)
	}
	return b, nil
}

// ListEvents returns journal events in sequence order, newest last. A
// non-positive limit returns all recorded events.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT seq, ts, type, account, payload FROM events ORDER BY seq ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var evt event.Event
		var seq, ts int64
		var evtType, account, payload string
		if err := rows.Scan(&seq, &ts, &evtType, &account, &payload); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Timestamp = fromMillis(ts)
		evt.Type = event.Type(evtType)
		evt.Account = box.Account(account)
		evt.PayloadJSON = []byte(payload)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBox(row rowScanner) (box.Box, error) {
	var b box.Box
	var account string
	var deposit, createdAt int64
	var alive, hasPrize int
	if err := row.Scan(&account, &deposit, &createdAt, &alive, &hasPrize); err != nil {
		return box.Box{}, err
	}
	b.Account = box.Account(account)
	b.Deposit = uint64(deposit)
	b.CreatedAt = fromMillis(createdAt)
	b.Alive = alive != 0
	b.HasPrize = hasPrize != 0
	return b, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

var _ storage.LedgerStore = (*Store)(nil)
