// Package signing implements per-request HMAC signing for the Petal API.
//
// Every request is signed with a key derived from the API key and the
// calling application's bundle ID. The server recomputes the same signature,
// so the scheme here must stay bit-exact:
//
//	signingKey = SHA256(apiKey ++ lowercase(bundleID))
//	message    = "{timestamp}\n{nonce}\n{hex(SHA256(body))}"
//	signature  = base64(HMAC-SHA256(signingKey, message))
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Envelope carries the replay-protection material attached to one request.
type Envelope struct {
	// Timestamp is Unix seconds at signing time.
	Timestamp int64
	// Nonce is unique per request.
	Nonce string
	// Signature is the base64 HMAC-SHA256 over timestamp, nonce, and body hash.
	Signature string
}

// Signer produces request signatures for a fixed (apiKey, bundleID) pair.
// Signer is stateless and safe for unrestricted concurrent use.
type Signer struct {
	apiKey   string
	bundleID string
}

// New creates a Signer. Empty credentials are accepted and produce
// well-defined (if useless) signatures; validation is the caller's concern.
func New(apiKey, bundleID string) *Signer {
	return &Signer{apiKey: apiKey, bundleID: bundleID}
}

// Sign generates a fresh timestamp and nonce and signs the given body.
// A nil body and an empty body produce the same signature.
func (s *Signer) Sign(body []byte) Envelope {
	ts := time.Now().Unix()
	nonce := uuid.NewString()
	return Envelope{
		Timestamp: ts,
		Nonce:     nonce,
		Signature: s.Compute(ts, nonce, body),
	}
}

// Compute returns the signature for the given timestamp, nonce, and body.
// It is a pure function: identical inputs always produce identical output.
func (s *Signer) Compute(timestamp int64, nonce string, body []byte) string {
	key := sha256.Sum256([]byte(s.apiKey + strings.ToLower(s.bundleID)))

	bodyHash := sha256.Sum256(body)
	message := fmt.Sprintf("%d\n%s\n%s", timestamp, nonce, hex.EncodeToString(bodyHash[:]))

	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
