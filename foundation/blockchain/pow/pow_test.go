package pow_test

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/hashrace/coordinator/foundation/blockchain/pow"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_HeaderBytes(t *testing.T) {
	type table struct {
		name     string
		height   uint64
		prevHash string
		nonce    uint32
		exp      string
	}

	tt := []table{
		{
			name:     "genesis child",
			height:   1,
			prevHash: pow.ZeroHash,
			nonce:    42,
			exp:      "1|" + pow.ZeroHash + "|42",
		},
		{
			name:     "max nonce",
			height:   1000,
			prevHash: strings.Repeat("ab", 32),
			nonce:    4294967295,
			exp:      "1000|" + strings.Repeat("ab", 32) + "|4294967295",
		},
	}

	t.Log("Given the need to serialize block headers deterministically.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling header %s.", testID, tst.name)
			{
				got := string(pow.HeaderBytes(tst.height, tst.prevHash, tst.nonce))
				if got != tst.exp {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get the canonical header bytes.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get the canonical header bytes.", success, testID)
			}
		}
	}
}

func Test_DigestHex(t *testing.T) {
	t.Log("Given the need to hash header bytes with SHA-256.")
	{
		data := pow.HeaderBytes(1, pow.ZeroHash, 7)

		sum := sha256.Sum256(data)
		exp := hex.EncodeToString(sum[:])

		got := pow.DigestHex(data)
		if got != exp {
			t.Fatalf("\t%s\tShould match the reference digest: got %s, exp %s.", failed, got, exp)
		}
		t.Logf("\t%s\tShould match the reference digest.", success)

		if len(got) != pow.HashLen || got != strings.ToLower(got) {
			t.Fatalf("\t%s\tShould be 64 lower case hex characters.", failed)
		}
		t.Logf("\t%s\tShould be 64 lower case hex characters.", success)
	}
}

func Test_MeetsDifficulty(t *testing.T) {
	type table struct {
		name   string
		digest string
		bits   uint
		exp    bool
	}

	tt := []table{
		{
			name:   "zero bits admits everything",
			digest: strings.Repeat("f", 64),
			bits:   0,
			exp:    true,
		},
		{
			name:   "top bit set fails one bit",
			digest: "8" + strings.Repeat("0", 63),
			bits:   1,
			exp:    false,
		},
		{
			name:   "top bit clear meets one bit",
			digest: "7" + strings.Repeat("f", 63),
			bits:   1,
			exp:    true,
		},
		{
			name:   "boundary value fails",
			digest: "0001" + strings.Repeat("0", 60),
			bits:   16,
			exp:    false,
		},
		{
			name:   "below boundary passes",
			digest: "0000" + strings.Repeat("f", 60),
			bits:   16,
			exp:    true,
		},
		{
			name:   "all zero hash passes any difficulty",
			digest: pow.ZeroHash,
			bits:   32,
			exp:    true,
		},
		{
			name:   "bits beyond the digest width reject a nonzero hash",
			digest: "0000000000000000000000000000000000000000000000000000000000000001",
			bits:   300,
			exp:    false,
		},
		{
			name:   "bits beyond the digest width still admit the zero hash",
			digest: pow.ZeroHash,
			bits:   300,
			exp:    true,
		},
	}

	t.Log("Given the need to evaluate hashes against the difficulty target.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen checking %s.", testID, tst.name)
			{
				got := pow.MeetsDifficulty(tst.digest, tst.bits)
				if got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get %v for difficulty %d.", failed, testID, tst.exp, tst.bits)
				}
				t.Logf("\t%s\tTest %d:\tShould get %v for difficulty %d.", success, testID, tst.exp, tst.bits)
			}
		}
	}
}

// Test_RoundTrip makes sure a nonce found by searching satisfies the same
// rules the validator recomputes.
func Test_RoundTrip(t *testing.T) {
	t.Log("Given the need to find and verify a nonce at a low difficulty.")
	{
		const bits = 8

		var nonce uint32
		var hash string
		for {
			hash = pow.BlockHash(1, pow.ZeroHash, nonce)
			if pow.MeetsDifficulty(hash, bits) {
				break
			}
			nonce++
		}
		t.Logf("\t%s\tShould find a nonce: %d.", success, nonce)

		again := pow.DigestHex(fmt.Appendf(nil, "%d|%s|%d", 1, pow.ZeroHash, nonce))
		if again != hash {
			t.Fatalf("\t%s\tShould recompute the identical hash.", failed)
		}
		t.Logf("\t%s\tShould recompute the identical hash.", success)
	}
}
