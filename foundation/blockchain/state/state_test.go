package state_test

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashrace/coordinator/foundation/blockchain/pow"
	"github.com/hashrace/coordinator/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// testClock is an injectable authority clock the tests step by hand.
type testClock struct {
	ms int64
}

func (tc *testClock) now() time.Time {
	return time.UnixMilli(tc.ms)
}

func newTestState(bits uint, clock *testClock) *state.State {
	return state.New(state.Config{
		DifficultyBits: bits,
		Random:         rand.New(rand.NewSource(1)),
		Now:            clock.now,
	})
}

// solve searches for a nonce whose hash meets the difficulty.
func solve(t *testing.T, height uint64, prevHash string, bits uint) uint32 {
	for nonce := uint32(0); nonce < 1_000_000; nonce++ {
		if pow.MeetsDifficulty(pow.BlockHash(height, prevHash, nonce), bits) {
			return nonce
		}
	}

	t.Fatalf("\t%s\tShould find a nonce for height %d at %d bits.", failed, height, bits)
	return 0
}

// miss searches for a nonce whose hash does not meet the difficulty.
func miss(t *testing.T, height uint64, prevHash string, bits uint) uint32 {
	for nonce := uint32(0); nonce < 1_000_000; nonce++ {
		if !pow.MeetsDifficulty(pow.BlockHash(height, prevHash, nonce), bits) {
			return nonce
		}
	}

	t.Fatalf("\t%s\tShould find a failing nonce for height %d at %d bits.", failed, height, bits)
	return 0
}

func Test_SubmitAndDuplicate(t *testing.T) {
	t.Log("Given the need to admit a valid block exactly once.")
	{
		clock := testClock{}
		s := newTestState(1, &clock)
		genesis := s.Genesis()

		clock.ms = 100
		nonce := solve(t, 1, genesis.BlockHash, 1)

		block, err := s.SubmitBlock(1, genesis.BlockHash, nonce, "alpha", 90)
		if err != nil {
			t.Fatalf("\t%s\tShould accept a valid submission: %v.", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid submission.", success)

		if block.AcceptedTimestampMS != 100 {
			t.Fatalf("\t%s\tShould stamp the accepted time from the authority clock: got %d.", failed, block.AcceptedTimestampMS)
		}
		t.Logf("\t%s\tShould stamp the accepted time from the authority clock.", success)

		if block.MinedTimestampMS != 90 {
			t.Fatalf("\t%s\tShould preserve the miner's reported solve time.", failed)
		}
		t.Logf("\t%s\tShould preserve the miner's reported solve time.", success)

		if _, err := s.SubmitBlock(1, genesis.BlockHash, nonce, "beta", 95); err == nil {
			t.Fatalf("\t%s\tShould reject the identical resubmission.", failed)
		}
		t.Logf("\t%s\tShould reject the identical resubmission.", success)

		m := s.RetrieveMetrics()
		if m.BlocksAccepted != 1 || m.RejectedByReason[state.ReasonDuplicateBlock] != 1 {
			t.Fatalf("\t%s\tShould count one acceptance and one duplicate rejection.", failed)
		}
		t.Logf("\t%s\tShould count one acceptance and one duplicate rejection.", success)

		if m.AcceptedByMiner["alpha"] != 1 || m.AcceptedByMiner["beta"] != 0 {
			t.Fatalf("\t%s\tShould credit only the first miner.", failed)
		}
		t.Logf("\t%s\tShould credit only the first miner.", success)
	}
}

func Test_RejectReasons(t *testing.T) {
	t.Log("Given the need to reject invalid submissions with a reason.")
	{
		clock := testClock{}
		s := newTestState(16, &clock)
		genesis := s.Genesis()

		unknown := strings.Repeat("ab", 32)
		_, err := s.SubmitBlock(1, unknown, 0, "alpha", 0)
		re := state.GetReject(err)
		if re == nil || re.Reason != state.ReasonUnknownParent {
			t.Fatalf("\t%s\tShould reject an unknown parent: %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject an unknown parent.", success)

		_, err = s.SubmitBlock(5, genesis.BlockHash, 0, "alpha", 0)
		re = state.GetReject(err)
		if re == nil || re.Reason != state.ReasonWrongHeight {
			t.Fatalf("\t%s\tShould reject the wrong height: %v.", failed, err)
		}
		if err.Error() != "wrong height: expected 1, got 5" {
			t.Fatalf("\t%s\tShould report the expected height: %q.", failed, err.Error())
		}
		t.Logf("\t%s\tShould reject the wrong height with the expected value.", success)

		badNonce := miss(t, 1, genesis.BlockHash, 16)
		_, err = s.SubmitBlock(1, genesis.BlockHash, badNonce, "alpha", 0)
		re = state.GetReject(err)
		if re == nil || re.Reason != state.ReasonInvalidPoW {
			t.Fatalf("\t%s\tShould reject insufficient proof of work: %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject insufficient proof of work.", success)

		m := s.RetrieveMetrics()
		if m.RejectedTotal != 3 {
			t.Fatalf("\t%s\tShould count three rejections: got %d.", failed, m.RejectedTotal)
		}
		t.Logf("\t%s\tShould count three rejections.", success)

		if m.BlocksAccepted != 0 || m.Height != 0 {
			t.Fatalf("\t%s\tShould leave the ledger untouched by rejections.", failed)
		}
		t.Logf("\t%s\tShould leave the ledger untouched by rejections.", success)
	}
}

func Test_ForkDetection(t *testing.T) {
	t.Log("Given the need to detect competing children of one parent.")
	{
		clock := testClock{}
		s := newTestState(0, &clock)
		genesis := s.Genesis()

		if _, err := s.SubmitBlock(1, genesis.BlockHash, 1, "alpha", 0); err != nil {
			t.Fatalf("\t%s\tShould accept the first child: %v.", failed, err)
		}

		m := s.RetrieveMetrics()
		if m.ForksDetected != 0 {
			t.Fatalf("\t%s\tShould not flag a fork on the first child.", failed)
		}
		t.Logf("\t%s\tShould not flag a fork on the first child.", success)

		if _, err := s.SubmitBlock(1, genesis.BlockHash, 2, "beta", 0); err != nil {
			t.Fatalf("\t%s\tShould accept a competing child: %v.", failed, err)
		}

		m = s.RetrieveMetrics()
		if m.ForksDetected != 1 {
			t.Fatalf("\t%s\tShould flag a fork on the second child: got %d.", failed, m.ForksDetected)
		}
		t.Logf("\t%s\tShould flag a fork on the second child.", success)

		if _, err := s.SubmitBlock(1, genesis.BlockHash, 3, "gamma", 0); err != nil {
			t.Fatalf("\t%s\tShould accept a third child: %v.", failed, err)
		}

		m = s.RetrieveMetrics()
		if m.ForksDetected != 1 {
			t.Fatalf("\t%s\tShould not flag the same parent twice: got %d.", failed, m.ForksDetected)
		}
		t.Logf("\t%s\tShould not flag the same parent twice.", success)

		if m.BlocksAccepted != 3 || m.OrphanCount != 2 {
			t.Fatalf("\t%s\tShould keep all three children with two off the canonical path.", failed)
		}
		t.Logf("\t%s\tShould keep all three children with two off the canonical path.", success)
	}
}

func Test_ReorgAndViews(t *testing.T) {
	t.Log("Given the need to switch to a branch that takes a two block lead.")
	{
		clock := testClock{}
		s := newTestState(0, &clock)
		genesis := s.Genesis()

		clock.ms = 100
		a1, err := s.SubmitBlock(1, genesis.BlockHash, 1, "alpha", 0)
		if err != nil {
			t.Fatalf("\t%s\tShould accept the first branch: %v.", failed, err)
		}

		clock.ms = 200
		b1, err := s.SubmitBlock(1, genesis.BlockHash, 50, "beta", 0)
		if err != nil {
			t.Fatalf("\t%s\tShould accept the competing branch: %v.", failed, err)
		}

		clock.ms = 300
		b2, err := s.SubmitBlock(2, b1.BlockHash, 51, "beta", 0)
		if err != nil {
			t.Fatalf("\t%s\tShould extend the competing branch: %v.", failed, err)
		}

		clock.ms = 400
		b3, err := s.SubmitBlock(3, b2.BlockHash, 52, "beta", 0)
		if err != nil {
			t.Fatalf("\t%s\tShould extend the competing branch again: %v.", failed, err)
		}

		m := s.RetrieveMetrics()
		if m.Height != 3 || m.ReorgCount != 1 || m.OrphanCount != 1 {
			t.Fatalf("\t%s\tShould end at height 3 with one reorg and one orphan: got height %d reorgs %d orphans %d.", failed, m.Height, m.ReorgCount, m.OrphanCount)
		}
		t.Logf("\t%s\tShould end at height 3 with one reorg and one orphan.", success)

		chain := s.QueryMainChain(-1)
		if len(chain) != 4 || chain[3].BlockHash != b3.BlockHash {
			t.Fatalf("\t%s\tShould report the taller branch as canonical.", failed)
		}
		t.Logf("\t%s\tShould report the taller branch as canonical.", success)

		var orphans int
		for _, tb := range s.QueryAllBlocks() {
			if tb.BlockHash == a1.BlockHash && tb.InMainChain {
				t.Fatalf("\t%s\tShould tag the displaced block as off the canonical path.", failed)
			}
			if !tb.InMainChain {
				orphans++
			}
		}
		if orphans != 1 {
			t.Fatalf("\t%s\tShould tag exactly one block as an orphan: got %d.", failed, orphans)
		}
		t.Logf("\t%s\tShould tag the displaced block as the only orphan.", success)

		recent := s.QueryRecentBlocks(2)
		if len(recent) != 2 || recent[0].BlockHash != b3.BlockHash || recent[1].BlockHash != b2.BlockHash {
			t.Fatalf("\t%s\tShould list the most recently accepted blocks first.", failed)
		}
		t.Logf("\t%s\tShould list the most recently accepted blocks first.", success)

		tb, exists := s.QueryBlock(a1.BlockHash)
		if !exists || tb.InMainChain {
			t.Fatalf("\t%s\tShould look up the displaced block tagged off chain.", failed)
		}
		t.Logf("\t%s\tShould look up the displaced block tagged off chain.", success)

		tb, exists = s.QueryBlock(b3.BlockHash)
		if !exists || !tb.InMainChain {
			t.Fatalf("\t%s\tShould look up the canonical tip tagged on chain.", failed)
		}
		t.Logf("\t%s\tShould look up the canonical tip tagged on chain.", success)

		if _, exists := s.QueryBlock(strings.Repeat("cd", 32)); exists {
			t.Fatalf("\t%s\tShould not find an unknown hash.", failed)
		}
		t.Logf("\t%s\tShould not find an unknown hash.", success)
	}
}

func Test_TemplateFollowsTip(t *testing.T) {
	t.Log("Given the need to derive templates from the canonical tip.")
	{
		clock := testClock{}
		s := newTestState(0, &clock)
		genesis := s.Genesis()

		tmpl := s.RetrieveTemplate()
		if tmpl.Height != 1 || tmpl.PrevHash != genesis.BlockHash || tmpl.DifficultyBits != 0 {
			t.Fatalf("\t%s\tShould point at genesis before any block: %+v.", failed, tmpl)
		}
		t.Logf("\t%s\tShould point at genesis before any block.", success)

		block, err := s.SubmitBlock(1, genesis.BlockHash, 7, "alpha", 0)
		if err != nil {
			t.Fatalf("\t%s\tShould accept the submission: %v.", failed, err)
		}

		tmpl = s.RetrieveTemplate()
		if tmpl.Height != 2 || tmpl.PrevHash != block.BlockHash {
			t.Fatalf("\t%s\tShould advance to the new tip: %+v.", failed, tmpl)
		}
		t.Logf("\t%s\tShould advance to the new tip.", success)
	}
}

// Test_ConcurrentSubmissions races several miners over the same nonce range
// with readers running alongside. Every nonce is admissible once and a
// duplicate every other time, so the final counters are exact no matter how
// the race interleaves.
func Test_ConcurrentSubmissions(t *testing.T) {
	t.Log("Given the need to admit racing submissions atomically.")
	{
		const goroutines = 8
		const nonces = 25

		clock := testClock{ms: 100}
		s := newTestState(0, &clock)
		genesis := s.Genesis()

		var wg sync.WaitGroup
		wg.Add(goroutines + 2)

		for g := 0; g < goroutines; g++ {
			go func(minerID string) {
				defer wg.Done()

				for nonce := uint32(0); nonce < nonces; nonce++ {
					if _, err := s.SubmitBlock(1, genesis.BlockHash, nonce, minerID, 0); err != nil {
						re := state.GetReject(err)
						if re == nil || re.Reason != state.ReasonDuplicateBlock {
							t.Errorf("\t%s\tShould only lose the race to a duplicate: %v.", failed, err)
						}
					}
				}
			}(fmt.Sprintf("miner%d", g))
		}

		for r := 0; r < 2; r++ {
			go func() {
				defer wg.Done()

				for i := 0; i < 200; i++ {
					s.RetrieveMetrics()
					s.QueryAllBlocks()
					s.RetrieveTemplate()
				}
			}()
		}

		wg.Wait()

		m := s.RetrieveMetrics()
		if m.BlocksAccepted != nonces {
			t.Fatalf("\t%s\tShould accept each nonce exactly once: got %d.", failed, m.BlocksAccepted)
		}
		t.Logf("\t%s\tShould accept each nonce exactly once.", success)

		const dups = (goroutines - 1) * nonces
		if m.RejectedTotal != dups || m.RejectedByReason[state.ReasonDuplicateBlock] != dups {
			t.Fatalf("\t%s\tShould reject every losing submission as a duplicate: got %d.", failed, m.RejectedTotal)
		}
		t.Logf("\t%s\tShould reject every losing submission as a duplicate.", success)

		var credited uint64
		for _, count := range m.AcceptedByMiner {
			credited += count
		}
		if credited != nonces {
			t.Fatalf("\t%s\tShould credit each acceptance to exactly one miner: got %d.", failed, credited)
		}
		t.Logf("\t%s\tShould credit each acceptance to exactly one miner.", success)

		if m.ForksDetected != 1 {
			t.Fatalf("\t%s\tShould flag the shared parent's fork exactly once: got %d.", failed, m.ForksDetected)
		}
		t.Logf("\t%s\tShould flag the shared parent's fork exactly once.", success)

		if m.Height != 1 || m.OrphanCount != nonces-1 {
			t.Fatalf("\t%s\tShould keep one canonical child and orphan the rest.", failed)
		}
		t.Logf("\t%s\tShould keep one canonical child and orphan the rest.", success)

		if got := len(s.QueryAllBlocks()); got != nonces+1 {
			t.Fatalf("\t%s\tShould hold every accepted block plus genesis: got %d.", failed, got)
		}
		t.Logf("\t%s\tShould hold every accepted block plus genesis.", success)
	}
}

func Test_MetricsTiming(t *testing.T) {
	t.Log("Given the need to derive block time statistics from accepted times.")
	{
		clock := testClock{}
		s := newTestState(0, &clock)
		prev := s.Genesis().BlockHash

		m := s.RetrieveMetrics()
		if m.AvgBlockTimeMS != 0.0 || m.LastBlockTimeMS != nil {
			t.Fatalf("\t%s\tShould report no timings on an empty chain.", failed)
		}
		t.Logf("\t%s\tShould report no timings on an empty chain.", success)

		for i, ms := range []int64{100, 300, 700} {
			clock.ms = ms
			block, err := s.SubmitBlock(uint64(i+1), prev, 1, "alpha", ms)
			if err != nil {
				t.Fatalf("\t%s\tShould accept block %d: %v.", failed, i+1, err)
			}
			prev = block.BlockHash
		}

		clock.ms = 1000
		m = s.RetrieveMetrics()

		// Deltas along the canonical chain are {200, 400}; the gap between
		// genesis and the first mined block does not count.
		if m.AvgBlockTimeMS != 300.0 {
			t.Fatalf("\t%s\tShould average to 300.0ms: got %v.", failed, m.AvgBlockTimeMS)
		}
		t.Logf("\t%s\tShould average to 300.0ms excluding the genesis gap.", success)

		if m.LastBlockTimeMS == nil || *m.LastBlockTimeMS != 400 {
			t.Fatalf("\t%s\tShould report the last delta as 400ms.", failed)
		}
		t.Logf("\t%s\tShould report the last delta as 400ms.", success)

		if m.UptimeMS != 1000 {
			t.Fatalf("\t%s\tShould measure uptime from process start: got %d.", failed, m.UptimeMS)
		}
		t.Logf("\t%s\tShould measure uptime from process start.", success)
	}
}
