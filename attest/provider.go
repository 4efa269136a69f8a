// Package attest produces device attestations and per-request assertions.
//
// Two implementations exist: [PlatformProvider], backed by a persisted
// ECDSA P-256 device key, and [SimulatedProvider], which fabricates
// structurally equivalent but unverifiable payloads so non-hardware
// environments can exercise the same request paths. Callers select one at
// construction time and must not branch on the concrete type afterwards.
package attest

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// Provider is the capability set shared by both attestation variants.
//
// Implementations persist their key through a securestore and must be safe
// for concurrent use.
type Provider interface {
	// Supported reports whether this provider can produce attestations in
	// the current environment.
	Supported() bool

	// KeyID returns the persisted attestation key identifier, or "" when no
	// key has been generated yet.
	KeyID() (string, error)

	// EnsureKey returns the attestation key identifier, generating and
	// persisting a new key on first call. Idempotent.
	EnsureKey() (string, error)

	// AttestKey produces a base64 attestation object over the (hashed)
	// base64-encoded challenge.
	AttestKey(challenge string) (string, error)

	// GenerateAssertion produces a base64 single-use assertion binding the
	// request body and the replay counter to the device key.
	GenerateAssertion(body []byte, counter uint64) (string, error)

	// Clear removes the local key reference. It does not revoke key
	// material with any upstream authority.
	Clear() error
}

var (
	// ErrNoAttestationKey is returned when an assertion is requested before
	// a key exists. Surfacing this beats emitting a corrupt assertion.
	ErrNoAttestationKey = errors.New("attest: no attestation key")

	// ErrAttestationFailed is returned when key generation or attestation
	// signing fails.
	ErrAttestationFailed = errors.New("attest: attestation failed")
)

// Store is the persistence surface a provider needs: a named-entry secure
// store. *securestore.Store satisfies it.
type Store interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
}

// Store entry names shared by both providers.
const (
	entryKeyID      = "attestation_key_id"
	entryPrivateKey = "attestation_private_key"
)

// assertionDigest hashes the request body concatenated with the big-endian
// counter. Both variants sign (or mock-sign) exactly this digest.
func assertionDigest(body []byte, counter uint64) [32]byte {
	buf := make([]byte, 0, len(body)+8)
	buf = append(buf, body...)
	buf = binary.BigEndian.AppendUint64(buf, counter)
	return sha256.Sum256(buf)
}
