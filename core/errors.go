package core

import (
	"errors"
	"fmt"
)

// APIError represents an error returned by the backend with full context.
type APIError struct {
	Status    int
	Code      string
	RequestID string
	Message   string
	// RetryAfter is the server-suggested wait in seconds for rate-limit
	// errors. Zero means the server did not provide a usable value.
	RetryAfter int
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("petal: %s (status=%d, code=%s, request_id=%s)",
			e.Message, e.Status, e.Code, e.RequestID)
	}
	return fmt.Sprintf("petal: %s (status=%d, code=%s)", e.Message, e.Status, e.Code)
}

// Unwrap returns the underlying sentinel for error chaining.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Transport-level sentinels.
var (
	ErrTimeout           = errors.New("request timed out")
	ErrNetwork           = errors.New("network error")
	ErrStreamInterrupted = errors.New("stream interrupted")
)

// Serialization sentinels.
var (
	ErrEncode = errors.New("encode error")
	ErrDecode = errors.New("decode error")
)

// Credential and identity sentinels.
var (
	ErrInvalidCredential   = errors.New("invalid api key")
	ErrInvalidAppIdentity  = errors.New("invalid bundle id")
	ErrInvalidTeamIdentity = errors.New("invalid team id")
)

// Replay-protection sentinels.
var (
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrTimestampExpired = errors.New("request timestamp expired")
	ErrNonceReused      = errors.New("request nonce reused")
)

// Attestation sentinels.
var (
	ErrAttestationRequired    = errors.New("attestation required")
	ErrDeviceNotRegistered    = errors.New("device not registered")
	ErrInvalidAttestation     = errors.New("invalid attestation")
	ErrAttestationRevoked     = errors.New("attestation revoked")
	ErrAttestationUnsupported = errors.New("attestation not supported")
	ErrSimulatorNotAllowed    = errors.New("simulator not allowed")
)

// Quota and throughput sentinels.
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Generic sentinels.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrServer           = errors.New("server error")
	ErrHTTP             = errors.New("http error")
	ErrUnknown          = errors.New("unknown error")
)

// Validation errors with actionable guidance.
var (
	ErrModelRequired = errors.New("model required: pass a model ID to Client.Chat(), e.g., client.Chat(\"petal-2\")")
	ErrNoMessages    = errors.New("no messages: add at least one message using .System(), .User(), or .Assistant()")
)
