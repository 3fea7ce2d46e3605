package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrHashMismatch means the revealed server seed does not hash to the value
// committed before the round. Treated as a tamper signal, not a routine failure.
var ErrHashMismatch = errors.New("server seed hash mismatch")

const serverSeedBytes = 32

// GenerateServerSeed returns 256 bits from the CSPRNG, hex encoded.
func GenerateServerSeed() (string, error) {
	const op = "fairness.GenerateServerSeed"

	buf := make([]byte, serverSeedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(buf), nil
}

// HashServerSeed is the only seed material disclosed to the player before
// a round completes.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))

	return hex.EncodeToString(sum[:])
}

// Roll derives the committed random draw:
// HMAC-SHA256(key=serverSeed, msg=clientSeed+":"+nonce), first 8 hex chars
// as uint32, normalized by 0xFFFFFFFF into [0, 1). Deterministic, which is
// what makes every settled round independently recomputable.
func Roll(serverSeed, clientSeed string, nonce int64) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(clientSeed + ":" + strconv.FormatInt(nonce, 10)))

	digest := hex.EncodeToString(h.Sum(nil))

	num, _ := strconv.ParseUint(digest[:8], 16, 64)

	return normalize(num)
}

// normalize divides the 32-bit prefix by 0xFFFFFFFF and pins the one
// prefix that hits the divisor exactly (ffffffff, odds 2^-32) just under
// 1.0, keeping the half-open range the game rules assume: a full 1.0 would
// roll dice 101 and put the crash divisor at zero.
func normalize(num uint64) float64 {
	r := float64(num) / float64(0xFFFFFFFF)
	if r >= 1 {
		r = math.Nextafter(1, 0)
	}

	return r
}

type VerifyResult struct {
	ServerSeed     string  `json:"server_seed"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ClientSeed     string  `json:"client_seed"`
	Nonce          int64   `json:"nonce"`
	Random         float64 `json:"random"`
}

// Verify checks the commit-then-reveal contract: the revealed seed must hash
// to the committed digest, after which the draw is recomputed from scratch so
// any third party can confirm the settled outcome.
func Verify(serverSeed, serverSeedHash, clientSeed string, nonce int64) (*VerifyResult, error) {
	const op = "fairness.Verify"

	if HashServerSeed(serverSeed) != serverSeedHash {
		return nil, fmt.Errorf("%s: %w", op, ErrHashMismatch)
	}

	return &VerifyResult{
		ServerSeed:     serverSeed,
		ServerSeedHash: serverSeedHash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Random:         Roll(serverSeed, clientSeed, nonce),
	}, nil
}
