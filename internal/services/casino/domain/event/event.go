// Package event defines the append-only event records emitted by the box
// ledger write path.
//
// Events are immutable business facts: a box was created, a box was
// resolved, the pool was force-released. Storage assigns sequence numbers on
// append; payloads travel as JSON so consumers outside this process can
// decode them without the domain types.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wavefold/catbox/internal/services/casino/domain/box"
)

// Type identifies the kind of a ledger event.
type Type string

const (
	// TypeBoxCreated records a deposit locking into a new box.
	TypeBoxCreated Type = "box.created"
	// TypeBoxResolved records a resolution and its final outcome.
	TypeBoxResolved Type = "box.resolved"
	// TypePoolReleased records an expiry settlement draining the pool.
	TypePoolReleased Type = "pool.released"
)

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	switch t {
	case TypeBoxCreated, TypeBoxResolved, TypePoolReleased:
		return true
	}
	return false
}

// Event represents an immutable record in the ledger journal.
type Event struct {
	// Seq is the event sequence number (starts at 1). Assigned by storage
	// on append.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// Account is the acting account.
	Account box.Account
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// BoxCreatedPayload is the payload for TypeBoxCreated.
type BoxCreatedPayload struct {
	Deposit uint64 `json:"deposit"`
}

// BoxResolvedPayload is the payload for TypeBoxResolved.
type BoxResolvedPayload struct {
	HasPrize bool   `json:"has_prize"`
	Payout   uint64 `json:"payout"`
}

// PoolReleasedPayload is the payload for TypePoolReleased.
type PoolReleasedPayload struct {
	Target box.Account `json:"target"`
	Amount uint64      `json:"amount"`
}

// NewBoxCreated builds a box.created event.
func NewBoxCreated(account box.Account, deposit uint64, at time.Time) (Event, error) {
	return newEvent(TypeBoxCreated, account, at, BoxCreatedPayload{Deposit: deposit})
}

// NewBoxResolved builds a box.resolved event.
func NewBoxResolved(account box.Account, hasPrize bool, payout uint64, at time.Time) (Event, error) {
	return newEvent(TypeBoxResolved, account, at, BoxResolvedPayload{HasPrize: hasPrize, Payout: payout})
}

// NewPoolReleased builds a pool.released event. The acting account is the
// settling caller; the payload carries the selected target.
func NewPoolReleased(caller, target box.Account, amount uint64, at time.Time) (Event, error) {
	return newEvent(TypePoolReleased, caller, at, PoolReleasedPayload{Target: target, Amount: amount})
}

func newEvent(t Type, account box.Account, at time.Time, payload any) (Event, error) {
	if strings.TrimSpace(string(account)) == "" {
		return Event{}, fmt.Errorf("event account is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		Timestamp:   at.UTC(),
		Type:        t,
		Account:     account,
		PayloadJSON: raw,
	}, nil
}

// DecodePayload unmarshals the payload into the type matching the event
// kind.
func DecodePayload(evt Event) (any, error) {
	switch evt.Type {
	case TypeBoxCreated:
		var p BoxCreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		return p, nil
	case TypeBoxResolved:
		var p BoxResolvedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		return p, nil
	case TypePoolReleased:
		var p PoolReleasedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
}
