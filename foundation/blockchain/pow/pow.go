// Package pow implements the fixed header format and the proof of work
// rules shared by the coordinator and the miners. A block is identified by
// the SHA-256 digest of its header and is admissible when that digest, read
// as a 256 bit integer, falls under the difficulty target.
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// ZeroHash represents a hash value of all zeroes. It is the previous hash
// and the block hash of the genesis block.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashLen is the length of a hex encoded block hash.
const HashLen = 64

// HeaderBytes returns the canonical byte representation of a block's
// identifying fields. The format is fixed and is what both the miners and
// the coordinator hash.
//
// NOTE: prevHash is not validated here. A malformed value just produces a
// digest that matches no known parent, so the submission fails the parent
// lookup before the hash is ever compared.
func HeaderBytes(height uint64, prevHash string, nonce uint32) []byte {
	return fmt.Appendf(nil, "%d|%s|%d", height, prevHash, nonce)
}

// DigestHex computes the SHA-256 digest of the specified data and returns
// it as a lower case 64 character hex string.
func DigestHex(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// BlockHash computes the block hash for the specified header fields.
func BlockHash(height uint64, prevHash string, nonce uint32) string {
	return DigestHex(HeaderBytes(height, prevHash, nonce))
}

// MeetsDifficulty reports whether the specified hex digest, interpreted as
// a big-endian 256 bit integer, is strictly less than 2^(256-difficultyBits).
// A difficulty of 0 makes every hash admissible. Difficulties at or beyond
// the digest width leave only the all zero hash admissible.
func MeetsDifficulty(hexDigest string, difficultyBits uint) bool {
	value, ok := new(big.Int).SetString(strings.ToLower(hexDigest), 16)
	if !ok {
		return false
	}

	if difficultyBits > 256 {
		difficultyBits = 256
	}

	target := new(big.Int).Lsh(big.NewInt(1), 256-difficultyBits)

	return value.Cmp(target) < 0
}
