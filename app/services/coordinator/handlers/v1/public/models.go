package public

import (
	"errors"

	"github.com/hashrace/coordinator/foundation/blockchain/ledger"
	"github.com/hashrace/coordinator/foundation/blockchain/state"
)

// errInvalidLimit is returned when a limit route parameter is not a
// non-negative integer.
var errInvalidLimit = errors.New("limit must be a non-negative integer")

// errBlockNotFound is returned when a block hash is not in the ledger.
var errBlockNotFound = errors.New("block not found")

// submission is what a miner posts when it believes it solved the next
// block. The mined timestamp is the miner's local clock and is stored for
// observability only.
type submission struct {
	Height      uint64 `json:"height" validate:"gte=0"`
	PrevHash    string `json:"prev_hash" validate:"required,len=64,hexadecimal"`
	Nonce       uint32 `json:"nonce"`
	MinerID     string `json:"miner_id" validate:"required,min=1,max=64"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// submitResult reports the outcome of a submission back to the miner.
type submitResult struct {
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	BlockHash string `json:"block_hash,omitempty"`
	Height    uint64 `json:"height,omitempty"`
}

// mainChain is the canonical chain view consumed by the dashboard.
type mainChain struct {
	Blocks []ledger.Block `json:"blocks"`
}

// allBlocks is the whole-ledger view, canonical blocks tagged.
type allBlocks struct {
	Blocks []state.TaggedBlock `json:"blocks"`
}
