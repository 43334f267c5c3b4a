// Package idgen mints message and topic identifiers.
//
// Identifiers are 26-character Crockford base32 ULIDs: the first 10
// characters encode milliseconds since the epoch, the last 16 encode
// randomness. Within a single generator, two identifiers minted in the
// same millisecond still compare strictly increasing, so byte-wise
// lexicographic order equals creation order.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Alphabet is the Crockford base32 alphabet used by identifiers.
// I, L, O and U are excluded.
const Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// IDLength is the length of every identifier.
const IDLength = 26

// Generator mints monotonic identifiers. Safe for use from a single
// process; cross-process ordering comes from the log append order, not
// from the generator.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// New returns a generator backed by the wall clock and crypto/rand.
func New() *Generator {
	return NewWithClock(time.Now)
}

// NewWithClock returns a generator that reads time from now. Tests pass
// a fixed clock to make identifiers deterministic in their timestamp
// prefix.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewID mints the next identifier.
func (g *Generator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}

// ValidPrefix reports whether s could be a prefix of an identifier:
// non-empty, at most IDLength characters, all from the Crockford
// alphabet. Lowercase input is accepted; callers should Normalize
// before comparing against stored identifiers.
func ValidPrefix(s string) bool {
	if s == "" || len(s) > IDLength {
		return false
	}
	for _, c := range strings.ToUpper(s) {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}

// Normalize upper-cases an identifier or prefix to its canonical form.
func Normalize(s string) string {
	return strings.ToUpper(s)
}
