// Package entropy supplies the per-call unpredictable value outcome
// derivation consumes. The contract is deliberately low-assurance: hosts
// may hand out block digests or similar values that observers can sometimes
// see early; that risk is accepted, not defended against.
package entropy

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"sync"

	"github.com/wavefold/catbox/internal/services/casino/domain/box"
)

// Source yields one unpredictable value per call.
type Source interface {
	Draw(ctx context.Context) (box.Entropy, error)
}

// CryptoSource draws from crypto/rand. It over-delivers on the contract's
// assurance level, but it is the cheapest honest source a plain host has.
type CryptoSource struct{}

// Draw reads 32 random bytes.
func (CryptoSource) Draw(_ context.Context) (box.Entropy, error) {
	var e box.Entropy
	if _, err := crand.Read(e[:]); err != nil {
		return box.Entropy{}, fmt.Errorf("read entropy: %w", err)
	}
	return e, nil
}

// SequenceSource replays a fixed list of values, then repeats the last one.
// Tests use it to pin outcome derivation.
type SequenceSource struct {
	mu     sync.Mutex
	values []box.Entropy
	next   int
}

// NewSequenceSource creates a source replaying the given values in order.
func NewSequenceSource(values ...box.Entropy) *SequenceSource {
	return &SequenceSource{values: values}
}

// Draw returns the next value in the sequence.
func (s *SequenceSource) Draw(_ context.Context) (box.Entropy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return box.Entropy{}, fmt.Errorf("sequence source is empty")
	}
	value := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return value, nil
}
