// Package keyedhash provides the two hash primitives the gatekeeper relies
// on: a keyed integrity seal over issued challenges, and the unkeyed
// proof-of-work target function clients search against.
package keyedhash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/zeebo/blake3"
)

// Size is the length in bytes of both hash outputs.
const Size = 32

var (
	secretOnce sync.Once
	secret     [Size]byte
)

// InitSecret derives the process-wide PoW secret once. If passphrase is at
// least Size bytes long, its first Size bytes are used verbatim; otherwise a
// freshly generated random key is used instead, with a warning logged when
// passphrase is non-empty. Only
// the first call has any effect — the secret is immutable for the life of
// the process.
func InitSecret(logger *slog.Logger, passphrase string) {
	secretOnce.Do(func() {
		if len(passphrase) >= Size {
			copy(secret[:], passphrase[:Size])
			return
		}
		if passphrase != "" {
			logger.Warn("configured security.keyed_hash is shorter than 32 bytes, falling back to a securely generated random key")
		}
		if _, err := rand.Read(secret[:]); err != nil {
			panic(fmt.Sprintf("keyedhash: could not generate a secure random secret: %v", err))
		}
	})
}

// IntegrityHash seals (challenge, difficultyBits, expiresAt) with the
// process secret so the server can verify a returned challenge without
// having stored it.
func IntegrityHash(challenge []byte, difficultyBits uint8, expiresAt uint64) [Size]byte {
	h, err := blake3.NewKeyed(secret[:])
	if err != nil {
		panic(fmt.Sprintf("keyedhash: new keyed hasher: %v", err))
	}
	h.Write(challenge)
	h.Write([]byte{difficultyBits})
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], expiresAt)
	h.Write(tsBuf[:])

	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ChallengeHash is the unkeyed proof-of-work target function: clients
// search nonce values until the result satisfies the configured difficulty.
// expiresAt is encoded as decimal ASCII to match what the rendered
// challenge page exposes to the client.
func ChallengeHash(nonce, challenge []byte, expiresAt uint64) [Size]byte {
	h := blake3.New()
	h.Write(nonce)
	h.Write(challenge)
	h.Write([]byte(strconv.FormatUint(expiresAt, 10)))

	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ConstantTimeEqual reports whether two hashes are equal without leaking
// timing information about where they first differ. Every hash comparison
// in this package's callers must go through this function.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
