package attest

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// attestationFormatMock tags payloads produced by the simulated provider so
// the server can tell them apart from genuine attestations.
const attestationFormatMock = "mock"

// SimulatedProvider fabricates attestation and assertion payloads that are
// structurally identical to the platform provider's but carry no verifiable
// signature. It lets simulator and CI environments exercise the full
// request-building path; the server decides whether to accept them.
type SimulatedProvider struct {
	store Store
}

// NewSimulatedProvider creates a simulated attestation provider backed by
// the given store.
func NewSimulatedProvider(store Store) *SimulatedProvider {
	return &SimulatedProvider{store: store}
}

// Supported reports true: the simulator is always available.
func (p *SimulatedProvider) Supported() bool {
	return true
}

// KeyID returns the persisted mock key identifier, or "" if none exists.
func (p *SimulatedProvider) KeyID() (string, error) {
	id, err := p.store.Get(entryKeyID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// EnsureKey returns the mock key identifier, fabricating one on first call.
func (p *SimulatedProvider) EnsureKey() (string, error) {
	id, err := p.KeyID()
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = "mock-" + uuid.NewString()
	if err := p.store.Set(entryKeyID, id); err != nil {
		return "", err
	}
	return id, nil
}

// AttestKey returns a mock attestation object over the hashed challenge.
func (p *SimulatedProvider) AttestKey(challenge string) (string, error) {
	id, err := p.KeyID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoAttestationKey
	}

	raw, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("%w: bad challenge encoding: %v", ErrAttestationFailed, err)
	}

	digest := sha256.Sum256(raw)

	obj := attestationObject{
		Format:    attestationFormatMock,
		KeyID:     id,
		Signature: base64.StdEncoding.EncodeToString(digest[:]),
	}
	return encodeObject(obj)
}

// GenerateAssertion returns a mock assertion over the body/counter digest.
func (p *SimulatedProvider) GenerateAssertion(body []byte, counter uint64) (string, error) {
	id, err := p.KeyID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoAttestationKey
	}

	digest := assertionDigest(body, counter)

	obj := assertionObject{
		Format:    attestationFormatMock,
		KeyID:     id,
		Counter:   counter,
		Signature: base64.StdEncoding.EncodeToString(digest[:]),
	}
	return encodeObject(obj)
}

// Clear removes the persisted mock key reference.
func (p *SimulatedProvider) Clear() error {
	return p.store.Delete(entryKeyID)
}

// Compile-time check that SimulatedProvider implements Provider.
var _ Provider = (*SimulatedProvider)(nil)
