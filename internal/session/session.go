// Package session implements the admitted-circuit-ID cache: a local,
// in-process TTL/TTI cache and a Redis-backed remote cache behind a common
// interface, selected at runtime by whether a Redis URL is configured.
package session

import "context"

// Cache is the capability set every session backend implements.
type Cache interface {
	// Contains reports whether circuitID currently holds a valid session.
	// Backends fail closed: any ambiguous error is treated as absent.
	Contains(ctx context.Context, circuitID uint32) bool

	// Set admits circuitID. Idempotent. Backends fail closed: any error is
	// logged and swallowed rather than propagated, since a failed Set
	// simply means the client will be asked to solve another challenge.
	Set(ctx context.Context, circuitID uint32)

	// Close releases any resources held by the backend.
	Close() error
}
