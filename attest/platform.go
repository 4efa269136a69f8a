package attest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petal-labs/warden/securestore"
)

// attestationFormatP256 tags attestation objects produced by the platform
// provider.
const attestationFormatP256 = "p256-v1"

// attestationObject is the wire shape of a key attestation.
type attestationObject struct {
	Format    string `json:"format"`
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key,omitempty"`
	Signature string `json:"signature"`
}

// assertionObject is the wire shape of a per-request assertion.
type assertionObject struct {
	Format    string `json:"format"`
	KeyID     string `json:"key_id"`
	Counter   uint64 `json:"counter"`
	Signature string `json:"signature"`
}

// PlatformProvider is the hardware-path attestation provider. The device key
// is an ECDSA P-256 keypair generated once and persisted in the secure
// store; attestations sign the SHA-256 of the server challenge and
// assertions sign the SHA-256 of body ++ bigEndian(counter).
type PlatformProvider struct {
	store Store
}

// NewPlatformProvider creates a platform attestation provider backed by the
// given store.
func NewPlatformProvider(store Store) *PlatformProvider {
	return &PlatformProvider{store: store}
}

// Supported reports true: the platform key scheme has no hardware
// dependency beyond the secure store.
func (p *PlatformProvider) Supported() bool {
	return true
}

// KeyID returns the persisted key identifier, or "" if none exists.
func (p *PlatformProvider) KeyID() (string, error) {
	id, err := p.store.Get(entryKeyID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// EnsureKey returns the key identifier, generating a keypair on first call.
func (p *PlatformProvider) EnsureKey() (string, error) {
	id, err := p.KeyID()
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}

	// Key identifier is the hash of the public key, like App Attest key IDs.
	sum := sha256.Sum256(pubDER)
	id = base64.StdEncoding.EncodeToString(sum[:])

	if err := p.store.Set(entryPrivateKey, base64.StdEncoding.EncodeToString(privDER)); err != nil {
		return "", err
	}
	if err := p.store.Set(entryKeyID, id); err != nil {
		return "", err
	}

	return id, nil
}

// AttestKey signs the hashed challenge with the device key and returns a
// base64 attestation object.
func (p *PlatformProvider) AttestKey(challenge string) (string, error) {
	id, priv, err := p.loadKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("%w: bad challenge encoding: %v", ErrAttestationFailed, err)
	}

	digest := sha256.Sum256(raw)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}

	obj := attestationObject{
		Format:    attestationFormatP256,
		KeyID:     id,
		PublicKey: base64.StdEncoding.EncodeToString(pubDER),
		Signature: base64.StdEncoding.EncodeToString(sig),
	}
	return encodeObject(obj)
}

// GenerateAssertion signs the body/counter digest with the device key and
// returns a base64 assertion object.
func (p *PlatformProvider) GenerateAssertion(body []byte, counter uint64) (string, error) {
	id, priv, err := p.loadKey()
	if err != nil {
		return "", err
	}

	digest := assertionDigest(body, counter)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}

	obj := assertionObject{
		Format:    attestationFormatP256,
		KeyID:     id,
		Counter:   counter,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}
	return encodeObject(obj)
}

// Clear removes the persisted key reference and key material.
func (p *PlatformProvider) Clear() error {
	if err := p.store.Delete(entryPrivateKey); err != nil {
		return err
	}
	return p.store.Delete(entryKeyID)
}

// loadKey reads the persisted keypair, returning ErrNoAttestationKey when
// no key has been generated.
func (p *PlatformProvider) loadKey() (string, *ecdsa.PrivateKey, error) {
	id, err := p.KeyID()
	if err != nil {
		return "", nil, err
	}
	if id == "" {
		return "", nil, ErrNoAttestationKey
	}

	encoded, err := p.store.Get(entryPrivateKey)
	if err != nil {
		if isNotFound(err) {
			return "", nil, ErrNoAttestationKey
		}
		return "", nil, err
	}

	privDER, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: corrupt key material: %v", ErrAttestationFailed, err)
	}

	key, err := x509.ParsePKCS8PrivateKey(privDER)
	if err != nil {
		return "", nil, fmt.Errorf("%w: corrupt key material: %v", ErrAttestationFailed, err)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return "", nil, fmt.Errorf("%w: unexpected key type", ErrAttestationFailed)
	}

	return id, ecKey, nil
}

func encodeObject(obj any) (string, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Compile-time check that PlatformProvider implements Provider.
var _ Provider = (*PlatformProvider)(nil)

func isNotFound(err error) bool {
	var nf *securestore.ErrNotFound
	return errors.As(err, &nf)
}
