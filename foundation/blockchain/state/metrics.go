package state

// avgWindow bounds the canonical walk when averaging block times so the
// metrics endpoint stays cheap on long chains.
const avgWindow = 10_000

// Metrics is a point in time snapshot of the engine's derived statistics.
// Field names match what the dashboard consumes.
type Metrics struct {
	Height           uint64                  `json:"height"`
	BlocksAccepted   int                     `json:"blocks_accepted"`
	AcceptedByMiner  map[string]uint64       `json:"accepted_by_miner"`
	RejectedTotal    uint64                  `json:"rejected_total"`
	RejectedByReason map[RejectReason]uint64 `json:"rejected_by_reason"`
	ForksDetected    uint64                  `json:"forks_detected"`
	ReorgCount       uint64                  `json:"reorg_count"`
	OrphanCount      int                     `json:"orphan_count"`
	AvgBlockTimeMS   float64                 `json:"avg_block_time_ms"`
	LastBlockTimeMS  *int64                  `json:"last_block_time_ms"`
	UptimeMS         int64                   `json:"uptime_ms"`
	DifficultyBits   uint                    `json:"difficulty_bits"`
}

// RetrieveMetrics derives a metrics snapshot from the current ledger and
// fork choice state. All derivations are read only.
func (s *State) RetrieveMetrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acceptedByMiner := make(map[string]uint64, len(s.acceptedByMiner))
	for minerID, count := range s.acceptedByMiner {
		acceptedByMiner[minerID] = count
	}

	rejectedByReason := make(map[RejectReason]uint64, len(s.rejectedByReason))
	for reason, count := range s.rejectedByReason {
		rejectedByReason[reason] = count
	}

	return Metrics{
		Height:           s.fork.BestBlock().Height,
		BlocksAccepted:   s.ledger.Count() - 1,
		AcceptedByMiner:  acceptedByMiner,
		RejectedTotal:    s.rejectedTotal,
		RejectedByReason: rejectedByReason,
		ForksDetected:    s.forksDetected,
		ReorgCount:       s.fork.ReorgCount(),
		OrphanCount:      s.fork.OrphanCount(),
		AvgBlockTimeMS:   s.avgBlockTimeMS(),
		LastBlockTimeMS:  s.lastBlockTimeMS(),
		UptimeMS:         s.now().UnixMilli() - s.startTimeMS,
		DifficultyBits:   s.difficultyBits,
	}
}

// avgBlockTimeMS averages the accepted timestamp deltas between consecutive
// canonical blocks. The delta between genesis and the first mined block is
// excluded, so the average starts from the third canonical block and is 0
// until one exists.
func (s *State) avgBlockTimeMS() float64 {
	chain := s.fork.MainChain(avgWindow)
	if len(chain) < 3 {
		return 0.0
	}

	var total int64
	for i := 2; i < len(chain); i++ {
		total += chain[i].AcceptedTimestampMS - chain[i-1].AcceptedTimestampMS
	}

	return float64(total) / float64(len(chain)-2)
}

// lastBlockTimeMS returns the accepted timestamp delta between the two most
// recent canonical blocks, or nil when fewer than two exist.
func (s *State) lastBlockTimeMS() *int64 {
	chain := s.fork.MainChain(2)
	if len(chain) < 2 {
		return nil
	}

	delta := chain[1].AcceptedTimestampMS - chain[0].AcceptedTimestampMS
	return &delta
}
