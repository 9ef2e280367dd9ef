// Package client implements an offline proof-of-work solver that fetches a
// challenge from the gatekeeper, brutes a satisfying nonce, and submits the
// solution — the CLI analogue of the JavaScript the browser challenge page
// runs automatically.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"powgate/internal/keyedhash"
	"powgate/internal/pow"
)

// Config holds the solver's target and timing parameters.
type Config struct {
	BaseURL        string
	ChallengePath  string
	CircuitID      string
	ConnectTimeout time.Duration
	SolveTimeout   time.Duration
}

// Client drives one fetch-solve-submit cycle against a running gatekeeper.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.ConnectTimeout},
		logger:     logger,
	}
}

var challengeFieldPattern = regexp.MustCompile(`challenge:\s*"([^"]+)"`)
var difficultyFieldPattern = regexp.MustCompile(`difficultyBits:\s*(\d+)`)
var expiresFieldPattern = regexp.MustCompile(`expiresAt:\s*(\d+)`)
var integrityFieldPattern = regexp.MustCompile(`integrityTag:\s*"([^"]+)"`)

// Solve fetches a challenge, brute-forces a valid nonce, and submits the
// solution, returning the gatekeeper's response status.
func (c *Client) Solve(ctx context.Context) (int, error) {
	challenge, difficultyBits, expiresAt, integrityTag, err := c.fetchChallenge(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching challenge: %w", err)
	}
	c.logger.Info("challenge received", "challenge", challenge, "difficulty_bits", difficultyBits)

	solveCtx, cancel := context.WithTimeout(ctx, c.cfg.SolveTimeout)
	defer cancel()

	start := time.Now()
	nonce, err := bruteForceNonce(solveCtx, []byte(challenge), difficultyBits, expiresAt)
	if err != nil {
		return 0, fmt.Errorf("solving challenge: %w", err)
	}
	c.logger.Info("challenge solved", "nonce", string(nonce), "duration", time.Since(start))

	body := pow.EncodeSolution(nonce, toChallengeArray(challenge), difficultyBits, expiresAt, integrityTag)
	return c.submitSolution(ctx, body)
}

func (c *Client) fetchChallenge(ctx context.Context) (challenge string, difficultyBits uint8, expiresAt uint64, integrityTag string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.cfg.ChallengePath, nil)
	if err != nil {
		return "", 0, 0, "", err
	}
	req.Header.Set("X-Circuit-Id", c.cfg.CircuitID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, 0, "", err
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, "", err
	}

	challengeMatch := challengeFieldPattern.FindSubmatch(page)
	difficultyMatch := difficultyFieldPattern.FindSubmatch(page)
	expiresMatch := expiresFieldPattern.FindSubmatch(page)
	integrityMatch := integrityFieldPattern.FindSubmatch(page)
	if challengeMatch == nil || difficultyMatch == nil || expiresMatch == nil || integrityMatch == nil {
		return "", 0, 0, "", fmt.Errorf("challenge page did not contain the expected fields")
	}

	difficulty64, err := strconv.ParseUint(string(difficultyMatch[1]), 10, 8)
	if err != nil {
		return "", 0, 0, "", err
	}
	expires, err := strconv.ParseUint(string(expiresMatch[1]), 10, 64)
	if err != nil {
		return "", 0, 0, "", err
	}

	return string(challengeMatch[1]), uint8(difficulty64), expires, string(integrityMatch[1]), nil
}

func (c *Client) submitSolution(ctx context.Context, body string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.ChallengePath, strings.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Circuit-Id", c.cfg.CircuitID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// bruteForceNonce searches increasing decimal nonces for one whose
// challenge hash meets difficultyBits, mirroring the teacher's own
// SolveChallenge loop.
func bruteForceNonce(ctx context.Context, challenge []byte, difficultyBits uint8, expiresAt uint64) ([]byte, error) {
	for n := uint64(0); ; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		nonce := []byte(strconv.FormatUint(n, 10))
		hash := keyedhash.ChallengeHash(nonce, challenge, expiresAt)
		if trailingZeroBitsLE(hash[:]) >= uint(difficultyBits) {
			return nonce, nil
		}
	}
}

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

func toChallengeArray(s string) [pow.ChallengeLen]byte {
	var out [pow.ChallengeLen]byte
	copy(out[:], s)
	return out
}
