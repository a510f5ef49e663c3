// Package ledger owns the set of all known blocks. Blocks are indexed by
// hash and linked through a parent to children adjacency so branches can be
// observed as they form. The ledger only ever grows; blocks are never
// mutated or removed.
package ledger

import (
	"sort"
	"time"
)

// Ledger maintains every admitted block along with the current set of
// branch tips. It performs no locking of its own; the state package runs
// every mutation inside a single critical section.
type Ledger struct {
	blocksByHash   map[string]Block
	childrenByHash map[string][]Block
	tips           map[string]struct{}
	genesis        Block

	// order records admission order so recently accepted blocks can be
	// returned without re-sorting timestamps that may collide.
	order []string
}

// New constructs a ledger seeded with a synthetic genesis block stamped at
// the specified time.
func New(now time.Time) *Ledger {
	genesis := Genesis(now)

	l := Ledger{
		blocksByHash:   map[string]Block{genesis.BlockHash: genesis},
		childrenByHash: map[string][]Block{genesis.BlockHash: {}},
		tips:           map[string]struct{}{genesis.BlockHash: {}},
		genesis:        genesis,
	}

	return &l
}

// Genesis returns the root block.
func (l *Ledger) Genesis() Block {
	return l.genesis
}

// Get returns the block with the specified hash.
func (l *Ledger) Get(hash string) (Block, bool) {
	block, exists := l.blocksByHash[hash]
	return block, exists
}

// Count returns the total number of known blocks, genesis included.
func (l *Ledger) Count() int {
	return len(l.blocksByHash)
}

// Tips returns the set of block hashes that have no children yet. Genesis
// starts as the only tip and leaves the set on its first child.
func (l *Ledger) Tips() map[string]struct{} {
	return l.tips
}

// ChildCount returns how many children the specified block has.
func (l *Ledger) ChildCount(hash string) int {
	return len(l.childrenByHash[hash])
}

// Insert adds a validated block to the ledger and maintains the adjacency
// and tip bookkeeping. It reports whether this insertion revealed a fork:
// true exactly when the parent's child count moved from one to two. The
// caller is responsible for having validated linkage and proof of work.
func (l *Ledger) Insert(block Block) (forkDetected bool) {
	l.blocksByHash[block.BlockHash] = block
	l.childrenByHash[block.BlockHash] = []Block{}
	l.order = append(l.order, block.BlockHash)

	l.childrenByHash[block.PrevHash] = append(l.childrenByHash[block.PrevHash], block)

	// The parent stops being a tip on its first child and never re-enters
	// the set, even if a later branch adds more children.
	delete(l.tips, block.PrevHash)
	l.tips[block.BlockHash] = struct{}{}

	return len(l.childrenByHash[block.PrevHash]) == 2
}

// AllBlocks returns every known block sorted ascending by height. Blocks at
// the same height keep admission order.
func (l *Ledger) AllBlocks() []Block {
	blocks := make([]Block, 0, len(l.blocksByHash))
	blocks = append(blocks, l.genesis)
	for _, hash := range l.order {
		blocks = append(blocks, l.blocksByHash[hash])
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Height < blocks[j].Height
	})

	return blocks
}

// RecentBlocks returns up to limit blocks across all branches, most
// recently accepted first.
func (l *Ledger) RecentBlocks(limit int) []Block {
	blocks := make([]Block, 0, len(l.order)+1)
	for i := len(l.order) - 1; i >= 0; i-- {
		blocks = append(blocks, l.blocksByHash[l.order[i]])
	}
	blocks = append(blocks, l.genesis)

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].AcceptedTimestampMS > blocks[j].AcceptedTimestampMS
	})

	if limit >= 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}

	return blocks
}
