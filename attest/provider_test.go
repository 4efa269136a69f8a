package attest

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/petal-labs/warden/securestore"
)

func testStore(t *testing.T) *securestore.Store {
	t.Helper()
	return securestore.OpenWithKey(filepath.Join(t.TempDir(), "store.enc"), []byte("test-key"))
}

func decodeAttestation(t *testing.T, encoded string) attestationObject {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("attestation is not base64: %v", err)
	}
	var obj attestationObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("attestation is not valid JSON: %v", err)
	}
	return obj
}

func decodeAssertion(t *testing.T, encoded string) assertionObject {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("assertion is not base64: %v", err)
	}
	var obj assertionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("assertion is not valid JSON: %v", err)
	}
	return obj
}

func TestPlatformEnsureKeyIdempotent(t *testing.T) {
	p := NewPlatformProvider(testStore(t))

	id1, err := p.EnsureKey()
	if err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}
	if id1 == "" {
		t.Fatal("EnsureKey() returned empty key id")
	}

	id2, err := p.EnsureKey()
	if err != nil {
		t.Fatalf("EnsureKey() second call error = %v", err)
	}
	if id2 != id1 {
		t.Errorf("EnsureKey() regenerated key: %q vs %q", id2, id1)
	}
}

func TestPlatformKeyIDEmptyBeforeGeneration(t *testing.T) {
	p := NewPlatformProvider(testStore(t))

	id, err := p.KeyID()
	if err != nil {
		t.Fatalf("KeyID() error = %v", err)
	}
	if id != "" {
		t.Errorf("KeyID() = %q, want empty before generation", id)
	}
}

func TestPlatformKeyPersistsAcrossProviders(t *testing.T) {
	store := testStore(t)

	id1, err := NewPlatformProvider(store).EnsureKey()
	if err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}

	id2, err := NewPlatformProvider(store).KeyID()
	if err != nil {
		t.Fatalf("KeyID() error = %v", err)
	}
	if id2 != id1 {
		t.Errorf("key id not persisted: %q vs %q", id2, id1)
	}
}

func TestPlatformAttestKeyVerifiable(t *testing.T) {
	p := NewPlatformProvider(testStore(t))
	if _, err := p.EnsureKey(); err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}

	challenge := base64.StdEncoding.EncodeToString([]byte("server-challenge"))
	encoded, err := p.AttestKey(challenge)
	if err != nil {
		t.Fatalf("AttestKey() error = %v", err)
	}

	obj := decodeAttestation(t, encoded)
	if obj.Format != attestationFormatP256 {
		t.Errorf("Format = %q, want %q", obj.Format, attestationFormatP256)
	}

	// The signature must verify against the embedded public key over the
	// hashed challenge, the way the server-side verifier checks it.
	pubDER, err := base64.StdEncoding.DecodeString(obj.PublicKey)
	if err != nil {
		t.Fatalf("public key decode error = %v", err)
	}
	pub, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		t.Fatalf("public key parse error = %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(obj.Signature)
	if err != nil {
		t.Fatalf("signature decode error = %v", err)
	}

	digest := sha256.Sum256([]byte("server-challenge"))
	if !ecdsa.VerifyASN1(pub.(*ecdsa.PublicKey), digest[:], sig) {
		t.Error("attestation signature does not verify")
	}
}

func TestPlatformAttestKeyBadChallenge(t *testing.T) {
	p := NewPlatformProvider(testStore(t))
	if _, err := p.EnsureKey(); err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}

	_, err := p.AttestKey("not-base64!!!")
	if !errors.Is(err, ErrAttestationFailed) {
		t.Errorf("AttestKey() error = %v, want ErrAttestationFailed", err)
	}
}

func TestPlatformAssertionWithoutKey(t *testing.T) {
	p := NewPlatformProvider(testStore(t))

	_, err := p.GenerateAssertion([]byte("body"), 1)
	if !errors.Is(err, ErrNoAttestationKey) {
		t.Errorf("GenerateAssertion() error = %v, want ErrNoAttestationKey", err)
	}
}

func TestPlatformAssertionVerifiable(t *testing.T) {
	p := NewPlatformProvider(testStore(t))
	if _, err := p.EnsureKey(); err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}

	challenge := base64.StdEncoding.EncodeToString([]byte("c"))
	att, err := p.AttestKey(challenge)
	if err != nil {
		t.Fatalf("AttestKey() error = %v", err)
	}
	pubObj := decodeAttestation(t, att)

	body := []byte(`{"model":"petal-2"}`)
	encoded, err := p.GenerateAssertion(body, 7)
	if err != nil {
		t.Fatalf("GenerateAssertion() error = %v", err)
	}

	obj := decodeAssertion(t, encoded)
	if obj.Counter != 7 {
		t.Errorf("Counter = %d, want 7", obj.Counter)
	}

	pubDER, _ := base64.StdEncoding.DecodeString(pubObj.PublicKey)
	pub, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		t.Fatalf("public key parse error = %v", err)
	}
	sig, _ := base64.StdEncoding.DecodeString(obj.Signature)

	digest := assertionDigest(body, 7)
	if !ecdsa.VerifyASN1(pub.(*ecdsa.PublicKey), digest[:], sig) {
		t.Error("assertion signature does not verify")
	}
}

func TestPlatformClear(t *testing.T) {
	p := NewPlatformProvider(testStore(t))
	if _, err := p.EnsureKey(); err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	id, err := p.KeyID()
	if err != nil {
		t.Fatalf("KeyID() error = %v", err)
	}
	if id != "" {
		t.Errorf("KeyID() after Clear = %q, want empty", id)
	}

	if _, err := p.GenerateAssertion([]byte("body"), 1); !errors.Is(err, ErrNoAttestationKey) {
		t.Errorf("GenerateAssertion() after Clear error = %v, want ErrNoAttestationKey", err)
	}
}

func TestSimulatedEnsureKeyIdempotent(t *testing.T) {
	p := NewSimulatedProvider(testStore(t))

	id1, err := p.EnsureKey()
	if err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}
	id2, err := p.EnsureKey()
	if err != nil {
		t.Fatalf("EnsureKey() second call error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("EnsureKey() regenerated mock key: %q vs %q", id1, id2)
	}
}

func TestSimulatedPayloadsTaggedMock(t *testing.T) {
	p := NewSimulatedProvider(testStore(t))
	if _, err := p.EnsureKey(); err != nil {
		t.Fatalf("EnsureKey() error = %v", err)
	}

	challenge := base64.StdEncoding.EncodeToString([]byte("c"))
	att, err := p.AttestKey(challenge)
	if err != nil {
		t.Fatalf("AttestKey() error = %v", err)
	}
	if got := decodeAttestation(t, att).Format; got != attestationFormatMock {
		t.Errorf("attestation Format = %q, want %q", got, attestationFormatMock)
	}

	asrt, err := p.GenerateAssertion([]byte("body"), 3)
	if err != nil {
		t.Fatalf("GenerateAssertion() error = %v", err)
	}
	obj := decodeAssertion(t, asrt)
	if obj.Format != attestationFormatMock {
		t.Errorf("assertion Format = %q, want %q", obj.Format, attestationFormatMock)
	}
	if obj.Counter != 3 {
		t.Errorf("assertion Counter = %d, want 3", obj.Counter)
	}
}

func TestSimulatedAssertionWithoutKey(t *testing.T) {
	p := NewSimulatedProvider(testStore(t))

	_, err := p.GenerateAssertion([]byte("body"), 1)
	if !errors.Is(err, ErrNoAttestationKey) {
		t.Errorf("GenerateAssertion() error = %v, want ErrNoAttestationKey", err)
	}
}

func TestProvidersShareCapabilitySet(t *testing.T) {
	// Both variants must be swappable behind the same interface.
	providers := []Provider{
		NewPlatformProvider(testStore(t)),
		NewSimulatedProvider(testStore(t)),
	}

	for _, p := range providers {
		if !p.Supported() {
			t.Errorf("%T.Supported() = false, want true", p)
		}
		if _, err := p.EnsureKey(); err != nil {
			t.Errorf("%T.EnsureKey() error = %v", p, err)
		}
		if _, err := p.GenerateAssertion([]byte("b"), 1); err != nil {
			t.Errorf("%T.GenerateAssertion() error = %v", p, err)
		}
	}
}
