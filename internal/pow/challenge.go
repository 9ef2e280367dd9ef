// Package pow implements the proof-of-work challenge lifecycle: issuance,
// the client solution wire format, and verification.
package pow

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"powgate/internal/config"
	"powgate/internal/keyedhash"
)

// ChallengeLen is the length in bytes of the random challenge token.
const ChallengeLen = 12

// B64Len is the exact length of the unpadded base64 integrity tag.
const B64Len = 43

// MinSolutionLen is the length threshold for a submitted solution body:
// ParseSolution rejects any body of MinSolutionLen bytes or fewer before
// looking at its contents.
const MinSolutionLen = 82

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Challenge is a freshly issued, self-verifying proof-of-work challenge. No
// server-side state is kept between issuance and verification; its
// authenticity is proven by IntegrityB64 alone.
type Challenge struct {
	Challenge      [ChallengeLen]byte
	DifficultyBits uint8
	ExpiresAt      uint64
	IntegrityB64   string
}

// ChallengeString returns the challenge token as a string for template
// rendering.
func (c *Challenge) ChallengeString() string {
	return string(c.Challenge[:])
}

// NewChallenge draws a random challenge token, maps the current CPU signal
// to a difficulty tier, computes an expiry, and seals everything with the
// integrity hash.
func NewChallenge(logger *slog.Logger, cfg *config.Pow, cpuUsage float32) (*Challenge, error) {
	var token [ChallengeLen]byte
	if err := randomAlphanumeric(token[:]); err != nil {
		return nil, fmt.Errorf("drawing random challenge bytes: %w", err)
	}

	difficultyBits := difficultyForCPU(cfg.CPUThresholds, cfg.Difficulty, cpuUsage)

	now, err := nowUnix()
	if err != nil {
		logger.Error("system clock is before the Unix epoch; using 0 as the expiry base", "error", err)
		now = 0
	}
	expiresAt := saturatingAdd(now, cfg.ChallengeTTL)

	tag := keyedhash.IntegrityHash(token[:], difficultyBits, expiresAt)
	integrityB64 := base64.RawStdEncoding.EncodeToString(tag[:])

	return &Challenge{
		Challenge:      token,
		DifficultyBits: difficultyBits,
		ExpiresAt:      expiresAt,
		IntegrityB64:   integrityB64,
	}, nil
}

// difficultyForCPU maps a CPU percentage to a difficulty tier using the
// half-open thresholds from spec.md §4.3.
func difficultyForCPU(t config.CPUThresholds, d config.Difficulty, cpu float32) uint8 {
	switch {
	case cpu < t.Low:
		return d.Minimum
	case cpu < t.Medium:
		return d.Medium
	case cpu < t.High:
		return d.High
	default:
		return d.Ultra
	}
}

func randomAlphanumeric(dst []byte) error {
	buf := make([]byte, len(dst))
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	for i, b := range buf {
		dst[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return nil
}

// NowUnix returns the current Unix timestamp, for use by callers that need
// to check expiry at the same clock precision NewChallenge uses.
func NowUnix() (uint64, error) {
	return nowUnix()
}

func nowUnix() (uint64, error) {
	now := time.Now().Unix()
	if now < 0 {
		return 0, fmt.Errorf("wall clock is before the Unix epoch")
	}
	return uint64(now), nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
