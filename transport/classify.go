package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/petal-labs/warden/core"
)

// apiErrorResponse is the backend's structured error envelope:
// {"error":{"message":"...","type":"...","code":"..."}}
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// codeToSentinel maps server error codes to taxonomy sentinels. The strings
// are part of the wire contract.
var codeToSentinel = map[string]error{
	"rate_limit_exceeded":       core.ErrRateLimited,
	"quota_exceeded":            core.ErrQuotaExceeded,
	"insufficient_balance":      core.ErrInsufficientBalance,
	"invalid_api_key":           core.ErrInvalidCredential,
	"missing_api_key":           core.ErrInvalidCredential,
	"invalid_signature":         core.ErrInvalidSignature,
	"missing_signature_headers": core.ErrInvalidSignature,
	"timestamp_expired":         core.ErrTimestampExpired,
	"invalid_timestamp":         core.ErrTimestampExpired,
	"nonce_reused":              core.ErrNonceReused,
	"invalid_bundle_id":         core.ErrInvalidAppIdentity,
	"invalid_team_id":           core.ErrInvalidTeamIdentity,
	"attestation_required":      core.ErrAttestationRequired,
	"device_not_registered":     core.ErrDeviceNotRegistered,
	"invalid_attestation":       core.ErrInvalidAttestation,
	"attestation_revoked":       core.ErrAttestationRevoked,
	"simulator_not_allowed":     core.ErrSimulatorNotAllowed,
}

// classify converts a non-2xx response into an APIError. The server error
// code wins; when absent or unrecognized, the HTTP status decides.
func classify(status int, body []byte, header http.Header) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	code := errResp.Error.Code
	if code == "" {
		code = errResp.Error.Type
	}

	message := errResp.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}

	sentinel, ok := codeToSentinel[code]
	if !ok {
		sentinel = sentinelForStatus(status)
	}

	apiErr := &core.APIError{
		Status:    status,
		Code:      code,
		RequestID: header.Get(headerRequestID),
		Message:   message,
		Err:       sentinel,
	}

	if errors.Is(sentinel, core.ErrRateLimited) {
		apiErr.RetryAfter = parseRetryAfter(header)
	}

	return apiErr
}

// sentinelForStatus is the fallback mapping for responses without a
// recognized error code.
func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return core.ErrInvalidCredential
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimited
	case status == http.StatusBadRequest:
		return core.ErrMalformedRequest
	case status >= 500:
		return core.ErrServer
	default:
		return core.ErrHTTP
	}
}

// parseRetryAfter reads the Retry-After header as whole seconds.
// Unparsable or negative values yield 0 (no suggestion).
func parseRetryAfter(header http.Header) int {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
