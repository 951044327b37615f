package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

const (
	// ROLL_GRANULARITY is the number of distinct roll values (first 8 hex
	// digits of the digest, interpreted as a uint32).
	ROLL_GRANULARITY = 0xFFFFFFFF

	SEED_BYTES = 32
)

// Draw generates a provably fair roll in [0, 1] from the session's fairness
// triple using HMAC-SHA256. Same inputs always produce the same roll, so a
// player can recompute every flip once the server seed is revealed.
func Draw(serverSeed, clientSeed string, nonce int) float64 {
	return rollFromMessage(serverSeed, fmt.Sprintf("%s:%d", clientSeed, nonce))
}

// DrawSalted derives a second, independent roll from the same triple by
// suffixing a salt to the nonce. Used so the zero-decision roll and the
// denomination-choice roll do not trivially correlate.
func DrawSalted(serverSeed, clientSeed, salt string, nonce int) float64 {
	return rollFromMessage(serverSeed, fmt.Sprintf("%s:%d:%s", clientSeed, nonce, salt))
}

func rollFromMessage(serverSeed, message string) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	digest := hex.EncodeToString(h.Sum(nil))

	// First 8 hex characters (32 bits)
	value, _ := strconv.ParseUint(digest[:8], 16, 64)

	return float64(value) / float64(ROLL_GRANULARITY)
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, SEED_BYTES)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCommitment checks a revealed server seed against the hash that was
// published when the session started.
func VerifyCommitment(seed, commitment string) bool {
	return HashCommitment(seed) == commitment
}

// VerifyRoll allows players to verify a recorded flip roll after the server
// seed is revealed. Rolls are deterministic, so the match must be exact.
func VerifyRoll(serverSeed, clientSeed string, nonce int, claimedRoll float64) bool {
	return Draw(serverSeed, clientSeed, nonce) == claimedRoll
}
