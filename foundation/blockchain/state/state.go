// Package state is the core API for the coordinator and implements all the
// business rules and processing. It owns the ledger, the fork choice and
// the process counters, and runs every admission as one atomic sequence.
package state

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hashrace/coordinator/foundation/blockchain/forkchoice"
	"github.com/hashrace/coordinator/foundation/blockchain/ledger"
)

// EventHandler defines a function that is called when events occur in the
// processing of block submissions.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to start the engine.
type Config struct {

	// DifficultyBits is the number of leading zero bits a block hash must
	// carry. It is fixed for the life of the process.
	DifficultyBits uint

	// Random drives the fork choice tie break. When nil a time seeded
	// source is used.
	Random *rand.Rand

	// Now supplies the authority clock. When nil time.Now is used. Tests
	// inject a fixed clock to pin accepted timestamps.
	Now func() time.Time

	EvHandler EventHandler
}

// State manages the block ledger and fork choice for the coordinator.
type State struct {
	mu sync.RWMutex

	difficultyBits uint
	now            func() time.Time
	evHandler      EventHandler

	ledger *ledger.Ledger
	fork   *forkchoice.ForkChoice

	acceptedByMiner  map[string]uint64
	rejectedTotal    uint64
	rejectedByReason map[RejectReason]uint64
	forksDetected    uint64
	startTimeMS      int64
}

// New constructs the engine with a synthetic genesis block as the unique
// root of the ledger.
func New(cfg Config) *State {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rng := cfg.Random
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	startedAt := now()
	ledg := ledger.New(startedAt)

	s := State{
		difficultyBits: cfg.DifficultyBits,
		now:            now,
		evHandler:      ev,

		ledger: ledg,
		fork:   forkchoice.New(ledg, rng),

		acceptedByMiner:  make(map[string]uint64),
		rejectedByReason: make(map[RejectReason]uint64),
		startTimeMS:      startedAt.UnixMilli(),
	}

	return &s
}

// DifficultyBits returns the fixed difficulty the engine validates against.
func (s *State) DifficultyBits() uint {
	return s.difficultyBits
}

// Genesis returns the root block.
func (s *State) Genesis() ledger.Block {
	return s.ledger.Genesis()
}
