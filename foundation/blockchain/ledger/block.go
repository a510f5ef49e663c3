package ledger

import (
	"time"

	"github.com/hashrace/coordinator/foundation/blockchain/pow"
)

// Block represents a single admitted block. Blocks are immutable values,
// created once on successful validation and never changed after that.
type Block struct {
	Height   uint64 `json:"height"`
	PrevHash string `json:"prev_hash"`
	Nonce    uint32 `json:"nonce"`
	MinerID  string `json:"miner_id"`

	// MinedTimestampMS is the miner's local clock at solve time. It is
	// stored for observability only and is never used for ordering or
	// validity decisions.
	MinedTimestampMS int64 `json:"mined_timestamp_ms"`

	// AcceptedTimestampMS is assigned from the coordinator's clock at the
	// moment the block is admitted.
	AcceptedTimestampMS int64 `json:"accepted_timestamp_ms"`

	BlockHash string `json:"block_hash"`
}

// Genesis constructs the synthetic root block. Its previous hash and block
// hash are both the all zero hash and it carries no proof of work.
func Genesis(now time.Time) Block {
	ms := now.UnixMilli()

	return Block{
		Height:              0,
		PrevHash:            pow.ZeroHash,
		Nonce:               0,
		MinerID:             "genesis",
		MinedTimestampMS:    ms,
		AcceptedTimestampMS: ms,
		BlockHash:           pow.ZeroHash,
	}
}
