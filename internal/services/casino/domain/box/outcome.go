package box

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/sha3"
)

// Outcome bits and the settlement target selector are derived from
// Keccak-256 digests truncated to the parity of their last byte. The inputs
// are deliberately low-assurance (block-style entropy, identities, counters);
// unpredictability beyond that is a non-goal.

// Entropy is a per-call unpredictable value supplied by the host, such as a
// prior block digest.
type Entropy [32]byte

func keccak256(chunks ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		d.Write(chunk)
	}
	return d.Sum(nil)
}

// parityEven reports whether the digest's last byte is even, the "prize"
// parity.
func parityEven(digest []byte) bool {
	return digest[len(digest)-1]%2 == 0
}

// ProvisionalPrize derives the outcome bit fixed at creation time from the
// host entropy, the creating account, and the player count at creation.
func ProvisionalPrize(entropy Entropy, account Account, playerCount uint64) bool {
	var count [8]byte
	binary.BigEndian.PutUint64(count[:], playerCount)
	return parityEven(keccak256(entropy[:], []byte(account), count[:]))
}

// EntangledPrize recomputes an outcome bit from its current value and the
// identity of the immediately preceding resolver. Every resolution after the
// system's first is coupled this way, regardless of box identity.
func EntangledPrize(current bool, lastResolver Account) bool {
	bit := []byte{0}
	if current {
		bit[0] = 1
	}
	return parityEven(keccak256(bit, []byte(lastResolver)))
}

// SettlementIndex derives the expiry-settlement target selector: a digest of
// the call time and caller identity reduced modulo the player count. The
// counter-modulus mapping is not a uniform map over identities in general;
// it is reproduced as-is rather than corrected. playerCount must be
// positive.
func SettlementIndex(now time.Time, caller Account, playerCount uint64) uint64 {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.Unix()))
	digest := keccak256(ts[:], []byte(caller))
	return binary.BigEndian.Uint64(digest[:8]) % playerCount
}
