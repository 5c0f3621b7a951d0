package callgen

import (
	"math/rand"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
)

// IDGenerator mints call ids of the form PREFIX_ULID. ULIDs take their time
// component from the injected clock and are monotonic within one millisecond.
type IDGenerator struct {
	mu      sync.Mutex
	clock   clock.Clock
	entropy *ulid.MonotonicEntropy
}

// NewIDGenerator creates an id generator seeded from seed
func NewIDGenerator(c clock.Clock, seed int64) *IDGenerator {
	return &IDGenerator{
		clock:   c,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// New returns a fresh id with the given prefix
func (g *IDGenerator) New(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy)
	return prefix + "_" + id.String()
}
