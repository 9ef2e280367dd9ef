package keyedhash

import (
	"bytes"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegrityHashDeterministic(t *testing.T) {
	InitSecret(testLogger(), "")
	a := IntegrityHash([]byte("abc123456789"), 20, 12345)
	b := IntegrityHash([]byte("abc123456789"), 20, 12345)
	if a != b {
		t.Fatalf("expected identical inputs to produce identical tags")
	}
}

func TestIntegrityHashSensitiveToInputs(t *testing.T) {
	InitSecret(testLogger(), "")
	base := IntegrityHash([]byte("abc123456789"), 20, 12345)

	if other := IntegrityHash([]byte("abc123456780"), 20, 12345); other == base {
		t.Fatalf("expected differing challenge to change the tag")
	}
	if other := IntegrityHash([]byte("abc123456789"), 21, 12345); other == base {
		t.Fatalf("expected differing difficulty to change the tag")
	}
	if other := IntegrityHash([]byte("abc123456789"), 20, 12346); other == base {
		t.Fatalf("expected differing expiry to change the tag")
	}
}

func TestIntegrityHashBase64RoundTrip(t *testing.T) {
	InitSecret(testLogger(), "")
	tag := IntegrityHash([]byte("abc123456789"), 20, 12345)
	encoded := base64.RawStdEncoding.EncodeToString(tag[:])

	decoded := make([]byte, Size)
	n, err := base64.RawStdEncoding.Decode(decoded, []byte(encoded))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != Size {
		t.Fatalf("expected %d decoded bytes, got %d", Size, n)
	}
	if !bytes.Equal(decoded, tag[:]) {
		t.Fatalf("round trip mismatch")
	}
}

func TestChallengeHashUnkeyedButDeterministic(t *testing.T) {
	a := ChallengeHash([]byte("42"), []byte("abc123456789"), 12345)
	b := ChallengeHash([]byte("42"), []byte("abc123456789"), 12345)
	if a != b {
		t.Fatalf("expected identical inputs to produce identical hashes")
	}
	if c := ChallengeHash([]byte("43"), []byte("abc123456789"), 12345); c == a {
		t.Fatalf("expected differing nonce to change the hash")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	c := []byte{1, 2, 4}
	if !ConstantTimeEqual(a, b) {
		t.Fatalf("expected equal slices to compare equal")
	}
	if ConstantTimeEqual(a, c) {
		t.Fatalf("expected differing slices to compare unequal")
	}
	if ConstantTimeEqual(a, []byte{1, 2}) {
		t.Fatalf("expected differing lengths to compare unequal")
	}
}
