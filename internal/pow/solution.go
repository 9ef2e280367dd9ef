package pow

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math/bits"
	"net/url"
	"strconv"
	"strings"

	"powgate/internal/keyedhash"
)

// Solution is a parsed, not-yet-verified client submission.
type Solution struct {
	Nonce          []byte
	Challenge      [ChallengeLen]byte
	DifficultyBits uint8
	ExpiresAt      uint64
	IntegrityTag   []byte
}

const solutionFieldPrefix = "solution="

// ParseSolution implements the separator-scan parser from spec.md §4.4,
// rejections 1–7. Per the original's Design Notes, the raw body is
// validated for ASCII/length/prefix first; only then is it URL-decoded and
// split on the literal "|" separator.
func ParseSolution(body []byte) (*Solution, *SolutionError) {
	if len(body) <= MinSolutionLen {
		return nil, errMalformed("solution body too short")
	}
	for _, b := range body {
		if b >= 0x80 {
			return nil, errMalformed("solution body contains non-ASCII bytes")
		}
	}
	if !bytes.HasPrefix(body, []byte(solutionFieldPrefix)) {
		return nil, errMalformed("solution body missing expected field prefix")
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errMalformed("solution body is not valid form encoding")
	}
	raw := values.Get("solution")
	if raw == "" {
		return nil, errMalformed("solution field is empty")
	}

	parts := strings.Split(raw, "|")
	if len(parts) != 5 {
		return nil, errMalformed("solution field does not have exactly 5 segments")
	}

	nonceStr, challengeStr, difficultyStr, expiresStr, integrityStr := parts[0], parts[1], parts[2], parts[3], parts[4]

	if len(challengeStr) != ChallengeLen {
		return nil, errMalformed("challenge segment has the wrong length")
	}
	if len(nonceStr) == 0 {
		return nil, errMalformed("nonce segment is empty")
	}

	difficulty64, err := strconv.ParseUint(difficultyStr, 10, 8)
	if err != nil {
		return nil, errMalformed("difficulty segment is not a valid u8")
	}
	expiresAt, err := strconv.ParseUint(expiresStr, 10, 64)
	if err != nil {
		return nil, errMalformed("expires_at segment is not a valid u64")
	}

	sol := &Solution{
		Nonce:          []byte(nonceStr),
		DifficultyBits: uint8(difficulty64),
		ExpiresAt:      expiresAt,
		IntegrityTag:   []byte(integrityStr),
	}
	copy(sol.Challenge[:], challengeStr)
	return sol, nil
}

// VerifyIntegrityAndWork implements the checks of spec.md §4.4 that run
// after the blacklist claim has already succeeded: base64/integrity
// (9–10), expiry (11), and the proof-of-work target (12). now is the
// current Unix time, injected so tests can exercise expiry deterministically.
func (s *Solution) VerifyIntegrityAndWork(now uint64) *SolutionError {
	clientTag := make([]byte, keyedhash.Size)
	n, err := base64.RawStdEncoding.Decode(clientTag, s.IntegrityTag)
	if err != nil || n != keyedhash.Size {
		return errMalformed("integrity tag is not valid base64")
	}

	expected := keyedhash.IntegrityHash(s.Challenge[:], s.DifficultyBits, s.ExpiresAt)
	if !keyedhash.ConstantTimeEqual(expected[:], clientTag) {
		return errMalformed("integrity check failed")
	}

	if s.ExpiresAt < now {
		return errTimedOut()
	}

	hash := keyedhash.ChallengeHash(s.Nonce, s.Challenge[:], s.ExpiresAt)
	if trailingZeroBitsLE(hash[:]) < uint(s.DifficultyBits) {
		return errValidationFailed()
	}
	return nil
}

// trailingZeroBitsLE counts the trailing zero bits of b interpreted as a
// little-endian unsigned integer (i.e. scanning from b[0] upward, since the
// least-significant byte of a little-endian integer is first in memory).
func trailingZeroBitsLE(b []byte) uint {
	var total uint
	for _, byt := range b {
		if byt == 0 {
			total += 8
			continue
		}
		total += uint(bits.TrailingZeros8(byt))
		break
	}
	return total
}

// EncodeSolution renders a Solution (and a nonce) into the
// application/x-www-form-urlencoded wire format consumed by ParseSolution.
// Used by the CLI solver tool.
func EncodeSolution(nonce []byte, challenge [ChallengeLen]byte, difficultyBits uint8, expiresAt uint64, integrityB64 string) string {
	raw := fmt.Sprintf("%s|%s|%d|%d|%s", nonce, challenge[:], difficultyBits, expiresAt, integrityB64)
	values := url.Values{"solution": {raw}}
	return values.Encode()
}
