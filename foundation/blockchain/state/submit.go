package state

import (
	"github.com/hashrace/coordinator/foundation/blockchain/ledger"
	"github.com/hashrace/coordinator/foundation/blockchain/pow"
)

// Template carries the fields a miner needs to search for the next block.
type Template struct {
	Height         uint64 `json:"height"`
	PrevHash       string `json:"prev_hash"`
	DifficultyBits uint   `json:"difficulty_bits"`
}

// RetrieveTemplate returns the mining template derived from the current
// canonical tip.
func (s *State) RetrieveTemplate() Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := s.fork.BestBlock()

	return Template{
		Height:         best.Height + 1,
		PrevHash:       best.BlockHash,
		DifficultyBits: s.difficultyBits,
	}
}

// SubmitBlock validates a proposed block and admits it into the ledger. The
// checks run in order and short circuit on the first failure, returning a
// RejectError that carries the reason. The whole admit and recompute
// sequence runs under one lock so the ledger never exposes a partially
// inserted block.
func (s *State) SubmitBlock(height uint64, prevHash string, nonce uint32, minerID string, minedTS int64) (ledger.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, exists := s.ledger.Get(prevHash)
	if !exists {
		return ledger.Block{}, s.reject(newReject(ReasonUnknownParent, "unknown parent %s", prevHash))
	}

	if height != parent.Height+1 {
		return ledger.Block{}, s.reject(newReject(ReasonWrongHeight, "wrong height: expected %d, got %d", parent.Height+1, height))
	}

	blockHash := pow.BlockHash(height, prevHash, nonce)
	if !pow.MeetsDifficulty(blockHash, s.difficultyBits) {
		return ledger.Block{}, s.reject(newReject(ReasonInvalidPoW, "hash %s does not meet difficulty %d", blockHash, s.difficultyBits))
	}

	if _, exists := s.ledger.Get(blockHash); exists {
		return ledger.Block{}, s.reject(newReject(ReasonDuplicateBlock, "block %s already known", blockHash))
	}

	block := ledger.Block{
		Height:              height,
		PrevHash:            prevHash,
		Nonce:               nonce,
		MinerID:             minerID,
		MinedTimestampMS:    minedTS,
		AcceptedTimestampMS: s.now().UnixMilli(),
		BlockHash:           blockHash,
	}

	if forkDetected := s.ledger.Insert(block); forkDetected {
		s.forksDetected++
		s.evHandler("state: SubmitBlock: FORK: parent[%s] has competing children", prevHash)
	}

	s.acceptedByMiner[minerID]++

	if reorged := s.fork.Reselect(block); reorged {
		s.evHandler("state: SubmitBlock: REORG: canonical tip moved to branch of %s", s.fork.BestTip())
	}

	s.evHandler("state: SubmitBlock: accepted: blk[%d] hash[%s] miner[%s]", height, blockHash, minerID)

	return block, nil
}

// reject counts a rejection under its reason before handing the error back
// to the caller. Rejections never mutate the ledger.
func (s *State) reject(re *RejectError) error {
	s.rejectedTotal++
	s.rejectedByReason[re.Reason]++

	s.evHandler("state: SubmitBlock: rejected: reason[%s]: %s", re.Reason, re.Err)

	return re
}
