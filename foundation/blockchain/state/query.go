package state

import (
	"github.com/hashrace/coordinator/foundation/blockchain/ledger"
)

// TaggedBlock is a block annotated with its canonical chain membership.
type TaggedBlock struct {
	ledger.Block
	InMainChain bool `json:"in_main_chain"`
}

// QueryMainChain returns the last limit blocks on the canonical path in
// ascending height order, genesis first when it fits the window. A negative
// limit returns the whole path.
func (s *State) QueryMainChain(limit int) []ledger.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fork.MainChain(limit)
}

// QueryAllBlocks returns every known block across all branches sorted
// ascending by height, each tagged with whether it is canonical.
func (s *State) QueryAllBlocks() []TaggedBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := s.ledger.AllBlocks()

	tagged := make([]TaggedBlock, len(blocks))
	for i, block := range blocks {
		tagged[i] = TaggedBlock{
			Block:       block,
			InMainChain: s.fork.OnMainChain(block.BlockHash),
		}
	}

	return tagged
}

// QueryRecentBlocks returns up to limit blocks most recently accepted
// across all branches, canonical or not.
func (s *State) QueryRecentBlocks(limit int) []ledger.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledger.RecentBlocks(limit)
}

// QueryBlock returns the block with the specified hash, tagged with its
// canonical chain membership.
func (s *State) QueryBlock(hash string) (TaggedBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, exists := s.ledger.Get(hash)
	if !exists {
		return TaggedBlock{}, false
	}

	tagged := TaggedBlock{
		Block:       block,
		InMainChain: s.fork.OnMainChain(block.BlockHash),
	}

	return tagged, true
}
