package pow

import (
	"io"
	"log/slog"
	"testing"

	"powgate/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDifficulty() config.Difficulty {
	return config.Difficulty{Minimum: 16, Medium: 20, High: 24, Ultra: 28}
}

func testThresholds() config.CPUThresholds {
	return config.CPUThresholds{Low: 30, Medium: 60, High: 85, Critical: 95}
}

func TestDifficultyForCPUMonotonic(t *testing.T) {
	d := testDifficulty()
	th := testThresholds()

	cases := []struct {
		cpu  float32
		want uint8
	}{
		{0, d.Minimum},
		{29.9, d.Minimum},
		{30, d.Medium},
		{59.9, d.Medium},
		{60, d.High},
		{84.9, d.High},
		{85, d.Ultra},
		{100, d.Ultra},
	}
	for _, tc := range cases {
		if got := difficultyForCPU(th, d, tc.cpu); got != tc.want {
			t.Errorf("difficultyForCPU(%v) = %d, want %d", tc.cpu, got, tc.want)
		}
	}
}

func TestNewChallengeProducesVerifiableIntegrityTag(t *testing.T) {
	cfg := &config.Pow{ChallengeTTL: 60, Difficulty: testDifficulty(), CPUThresholds: testThresholds()}
	c, err := NewChallenge(testLogger(), cfg, 10)
	if err != nil {
		t.Fatalf("NewChallenge failed: %v", err)
	}
	if len(c.ChallengeString()) != ChallengeLen {
		t.Fatalf("expected challenge token of length %d, got %d", ChallengeLen, len(c.ChallengeString()))
	}
	if c.DifficultyBits != cfg.Difficulty.Minimum {
		t.Fatalf("expected minimum difficulty tier at 10%% cpu, got %d", c.DifficultyBits)
	}
	if len(c.IntegrityB64) != B64Len {
		t.Fatalf("expected integrity tag of length %d, got %d", B64Len, len(c.IntegrityB64))
	}
}

func TestSaturatingAdd(t *testing.T) {
	if got := saturatingAdd(10, 20); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	max := ^uint64(0)
	if got := saturatingAdd(max, 1); got != max {
		t.Fatalf("expected saturation at max uint64, got %d", got)
	}
}
