package box

import (
	"testing"
	"time"
)

func TestProvisionalPrizeDeterministic(t *testing.T) {
	entropy := Entropy{1, 2, 3}

	first := ProvisionalPrize(entropy, "acct-a", 0)
	for i := 0; i < 5; i++ {
		if got := ProvisionalPrize(entropy, "acct-a", 0); got != first {
			t.Fatal("provisional prize must be deterministic for fixed inputs")
		}
	}
}

func TestProvisionalPrizeSensitivity(t *testing.T) {
	entropy := Entropy{1, 2, 3}
	base := ProvisionalPrize(entropy, "acct-a", 0)

	// At least one varied input must flip the bit across a spread of
	// counters; a constant function would break the game.
	flipped := false
	for count := uint64(1); count <= 64; count++ {
		if ProvisionalPrize(entropy, "acct-a", count) != base {
			flipped = true
			break
		}
	}
	if !flipped {
		t.Fatal("expected the player counter to influence the outcome bit")
	}
}

func TestEntangledPrizeDeterministic(t *testing.T) {
	first := EntangledPrize(true, "acct-prev")
	for i := 0; i < 5; i++ {
		if got := EntangledPrize(true, "acct-prev"); got != first {
			t.Fatal("entangled prize must be deterministic for fixed inputs")
		}
	}
}

func TestEntangledPrizeDependsOnCurrentBit(t *testing.T) {
	// For at least one resolver the pre-entanglement bit must matter.
	varied := false
	resolvers := []Account{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, r := range resolvers {
		if EntangledPrize(true, r) != EntangledPrize(false, r) {
			varied = true
			break
		}
	}
	if !varied {
		t.Fatal("expected the current bit to influence the entangled bit")
	}
}

func TestEntangledPrizeDependsOnResolver(t *testing.T) {
	// Across a spread of resolver identities both outcomes must occur,
	// otherwise the cursor coupling would be inert.
	sawTrue, sawFalse := false, false
	resolvers := []Account{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for _, r := range resolvers {
		if EntangledPrize(true, r) {
			sawTrue = true
		} else {
			sawFalse = true
		}
	}
	if !sawTrue || !sawFalse {
		t.Fatal("expected resolver identity to influence the entangled bit")
	}
}

func TestSettlementIndexWithinBound(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for _, count := range []uint64{1, 2, 7, 1000} {
		idx := SettlementIndex(now, "acct-caller", count)
		if idx >= count {
			t.Fatalf("index %d out of bound %d", idx, count)
		}
	}
}

func TestSettlementIndexDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	first := SettlementIndex(now, "acct-caller", 97)
	for i := 0; i < 5; i++ {
		if got := SettlementIndex(now, "acct-caller", 97); got != first {
			t.Fatal("settlement index must be deterministic for fixed inputs")
		}
	}
}

func TestSettlementIndexVariesWithTime(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	first := SettlementIndex(base, "acct-caller", 1000)

	varied := false
	for i := 1; i <= 32; i++ {
		if SettlementIndex(base.Add(time.Duration(i)*time.Second), "acct-caller", 1000) != first {
			varied = true
			break
		}
	}
	if !varied {
		t.Fatal("expected call time to influence the settlement index")
	}
}
