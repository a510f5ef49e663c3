package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashrace/coordinator/foundation/blockchain/pow"
	"github.com/spf13/cobra"
)

var (
	rounds     int
	refreshMS  int
	submitWait int
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Fetch templates and search for nonces.",
	Run:   mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().IntVarP(&rounds, "rounds", "r", 0, "Number of blocks to mine. 0 mines forever.")
	mineCmd.Flags().IntVar(&refreshMS, "refresh-ms", 1000, "How often to refresh the template while searching.")
	mineCmd.Flags().IntVar(&submitWait, "jitter-ms", 0, "Max artificial delay before submitting, to exercise races.")
}

// template mirrors the coordinator's template response.
type template struct {
	Height         uint64 `json:"height"`
	PrevHash       string `json:"prev_hash"`
	DifficultyBits uint   `json:"difficulty_bits"`
}

// submission is the payload posted to the coordinator on a solve.
type submission struct {
	Height      uint64 `json:"height"`
	PrevHash    string `json:"prev_hash"`
	Nonce       uint32 `json:"nonce"`
	MinerID     string `json:"miner_id"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// submitResult mirrors the coordinator's submit response.
type submitResult struct {
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason"`
	BlockHash string `json:"block_hash"`
	Height    uint64 `json:"height"`
}

func mineRun(cmd *cobra.Command, args []string) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; rounds == 0 || i < rounds; i++ {
		result, elapsed, err := mineOnce(rng)
		if err != nil {
			log.Printf("mine: ERROR: %s", err)
			time.Sleep(time.Second)
			continue
		}

		status := "accepted"
		if !result.Accepted {
			status = fmt.Sprintf("rejected (%s)", result.Reason)
		}
		log.Printf("mine: %s: height[%d] hash[%s] took[%s]", status, result.Height, result.BlockHash, elapsed)
	}
}

// mineOnce fetches a template, searches for a nonce that satisfies the
// proof of work, and submits the solved block. The template is refreshed
// while searching so a stale parent is abandoned quickly.
func mineOnce(rng *rand.Rand) (submitResult, time.Duration, error) {
	tpl, err := fetchTemplate()
	if err != nil {
		return submitResult{}, 0, fmt.Errorf("fetch template: %w", err)
	}

	start := time.Now()
	refresh := time.NewTicker(time.Duration(refreshMS) * time.Millisecond)
	defer refresh.Stop()

	// The nonce is the only field the miner can freely change. Start at a
	// random point so competing miners cover different ranges.
	nonce := rng.Uint32()

	for {
		select {
		case <-refresh.C:
			latest, err := fetchTemplate()
			if err == nil && latest.PrevHash != tpl.PrevHash {
				tpl = latest
			}
		default:
		}

		hash := pow.BlockHash(tpl.Height, tpl.PrevHash, nonce)
		if !pow.MeetsDifficulty(hash, tpl.DifficultyBits) {
			nonce++
			continue
		}

		if submitWait > 0 {
			time.Sleep(time.Duration(rng.Intn(submitWait)) * time.Millisecond)
		}

		result, err := submitBlock(submission{
			Height:      tpl.Height,
			PrevHash:    tpl.PrevHash,
			Nonce:       nonce,
			MinerID:     minerID,
			TimestampMS: time.Now().UnixMilli(),
		})
		if err != nil {
			return submitResult{}, 0, fmt.Errorf("submit block: %w", err)
		}

		return result, time.Since(start), nil
	}
}

func fetchTemplate() (template, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/template", url))
	if err != nil {
		return template{}, err
	}
	defer resp.Body.Close()

	var tpl template
	if err := json.NewDecoder(resp.Body).Decode(&tpl); err != nil {
		return template{}, err
	}

	return tpl, nil
}

func submitBlock(sub submission) (submitResult, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return submitResult{}, err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/block/submit", url), "application/json", bytes.NewReader(data))
	if err != nil {
		return submitResult{}, err
	}
	defer resp.Body.Close()

	var result submitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return submitResult{}, err
	}

	return result, nil
}
