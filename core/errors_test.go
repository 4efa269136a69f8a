package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		Status:  403,
		Code:    "invalid_attestation",
		Message: "assertion rejected",
		Err:     ErrInvalidAttestation,
	}

	msg := err.Error()
	if !strings.Contains(msg, "assertion rejected") {
		t.Errorf("Error() = %q, missing message", msg)
	}
	if !strings.Contains(msg, "status=403") {
		t.Errorf("Error() = %q, missing status", msg)
	}
	if strings.Contains(msg, "request_id") {
		t.Errorf("Error() = %q, request_id should be omitted when empty", msg)
	}
}

func TestAPIErrorMessageWithRequestID(t *testing.T) {
	err := &APIError{
		Status:    429,
		Code:      "rate_limit_exceeded",
		RequestID: "req_123",
		Message:   "slow down",
		Err:       ErrRateLimited,
	}

	if !strings.Contains(err.Error(), "request_id=req_123") {
		t.Errorf("Error() = %q, missing request id", err.Error())
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	err := &APIError{Message: "nope", Err: ErrDeviceNotRegistered}

	if !errors.Is(err, ErrDeviceNotRegistered) {
		t.Error("errors.Is() should match the wrapped sentinel")
	}
	if errors.Is(err, ErrInvalidAttestation) {
		t.Error("errors.Is() matched the wrong sentinel")
	}

	var apiErr *APIError
	wrapped := fmt.Errorf("outer context: %w", err)
	if !errors.As(wrapped, &apiErr) {
		t.Error("errors.As() should find APIError through wrapping")
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrTimeout, ErrNetwork, ErrStreamInterrupted,
		ErrEncode, ErrDecode,
		ErrInvalidCredential, ErrInvalidAppIdentity, ErrInvalidTeamIdentity,
		ErrInvalidSignature, ErrTimestampExpired, ErrNonceReused,
		ErrAttestationRequired, ErrDeviceNotRegistered, ErrInvalidAttestation,
		ErrAttestationRevoked, ErrAttestationUnsupported, ErrSimulatorNotAllowed,
		ErrRateLimited, ErrQuotaExceeded, ErrInsufficientBalance,
		ErrMalformedRequest, ErrServer, ErrHTTP, ErrUnknown,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinels %d and %d are not distinct: %v / %v", i, j, a, b)
			}
		}
	}
}
