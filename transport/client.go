// Package transport implements the secured HTTP layer for the Petal API:
// request signing, best-effort device assertions, error classification, the
// device registration flow, and server-sent-event stream decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/petal-labs/warden/attest"
	"github.com/petal-labs/warden/core"
	"github.com/petal-labs/warden/signing"
)

// Version is the SDK version reported in the User-Agent header.
const Version = "0.1.0"

// DefaultUserAgent identifies this SDK to the backend.
const DefaultUserAgent = "warden-go/" + Version

// Request header names. Names are case-insensitive on the wire; these are
// the canonical spellings.
const (
	headerBundleID        = "X-Bundle-Id"
	headerTeamID          = "X-Team-Id"
	headerTimestamp       = "X-Timestamp"
	headerNonce           = "X-Nonce"
	headerSignature       = "X-Signature"
	headerEnvironment     = "X-Environment"
	headerAttestKeyID     = "X-Attest-Key-Id"
	headerAttestAssertion = "X-Attest-Assertion"
	headerAttestCounter   = "X-Attest-Counter"
	headerRequestID       = "x-request-id"
)

// Counter is the replay counter the client increments before each
// assertion. *securestore.Store satisfies it.
type Counter interface {
	IncrementCounter() (uint64, error)
	ClearCounter() error
}

// Config configures a transport Client.
type Config struct {
	// APIKey is the bearer credential (required).
	APIKey string

	// Identity is the calling application's identity (required).
	Identity core.AppIdentity

	// BaseURL is the API base URL (required).
	BaseURL string

	// HTTPClient is the HTTP client to use. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Environment tags requests. Defaults to production.
	Environment core.Environment

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Attestor, when set, enables device attestation. Counter must be set
	// alongside it.
	Attestor attest.Provider

	// Counter is the persisted replay counter used for assertions.
	Counter Counter
}

// Client builds, signs, attests, sends, and classifies requests against a
// single logical backend. Client is safe for concurrent use; only the
// attestation counter/key mutation path is serialized.
type Client struct {
	cfg      Config
	apiKey   core.Secret
	signer   *signing.Signer
	attestor attest.Provider
	counter  Counter

	// mu guards the counter increment and key mutation path. Signing and
	// request building stay lock-free.
	mu sync.Mutex
}

// New creates a transport Client from the given configuration.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Environment == "" {
		cfg.Environment = core.EnvironmentProduction
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Client{
		cfg:      cfg,
		apiKey:   core.NewSecret(cfg.APIKey),
		signer:   signing.New(cfg.APIKey, cfg.Identity.BundleID),
		attestor: cfg.Attestor,
		counter:  cfg.Counter,
	}
}

// Do sends a request and decodes a 2xx response body into out (skipped when
// out is nil). Non-2xx responses are classified into the error taxonomy.
// A DeviceNotRegistered failure triggers the registration flow and exactly
// one retry of the original request.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	err = c.sendOnce(ctx, method, path, payload, out, true)
	if errors.Is(err, core.ErrDeviceNotRegistered) && c.attestor != nil {
		if regErr := c.registerDevice(ctx); regErr != nil {
			return regErr
		}
		// Exactly one retry. A second DeviceNotRegistered surfaces.
		err = c.sendOnce(ctx, method, path, payload, out, true)
	}
	return err
}

// sendOnce performs a single request/response cycle with no registration
// retry. attach controls whether assertion headers are attempted.
func (c *Client) sendOnce(ctx context.Context, method, path string, payload []byte, out any, attach bool) error {
	resp, err := c.roundTrip(ctx, method, path, payload, attach)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		clsErr := classify(resp.StatusCode, respBody, resp.Header)
		c.handleAttestationFailure(clsErr)
		return clsErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &core.APIError{
			Status:  resp.StatusCode,
			Message: err.Error(),
			Err:     core.ErrDecode,
		}
	}
	return nil
}

// roundTrip assembles headers, signs, optionally attests, and executes the
// request. Transport failures are classified; HTTP error statuses are not.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, attach bool) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, &core.APIError{Message: err.Error(), Err: core.ErrNetwork}
	}

	c.setHeaders(req, payload)
	if attach {
		c.attachAssertion(req, payload)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	return resp, nil
}

// setHeaders attaches identity, credential, environment, and signature
// headers in request-assembly order.
func (c *Client) setHeaders(req *http.Request, payload []byte) {
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Expose())
	req.Header.Set(headerBundleID, c.cfg.Identity.BundleID)
	if c.cfg.Identity.TeamID != "" {
		req.Header.Set(headerTeamID, c.cfg.Identity.TeamID)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set(headerEnvironment, string(c.cfg.Environment))

	env := c.signer.Sign(payload)
	req.Header.Set(headerTimestamp, strconv.FormatInt(env.Timestamp, 10))
	req.Header.Set(headerNonce, env.Nonce)
	req.Header.Set(headerSignature, env.Signature)
}

// attachAssertion adds assertion headers when a device key already exists.
// Best effort: any failure leaves the request unattested and the server
// decides whether to demand registration.
func (c *Client) attachAssertion(req *http.Request, payload []byte) {
	if c.attestor == nil || c.counter == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keyID, err := c.attestor.KeyID()
	if err != nil || keyID == "" {
		return
	}

	n, err := c.counter.IncrementCounter()
	if err != nil {
		return
	}

	assertion, err := c.attestor.GenerateAssertion(payload, n)
	if err != nil {
		return
	}

	req.Header.Set(headerAttestKeyID, keyID)
	req.Header.Set(headerAttestAssertion, assertion)
	req.Header.Set(headerAttestCounter, strconv.FormatUint(n, 10))
}

// handleAttestationFailure clears local attestation state when the server
// reports the attestation as invalid. Blind retry would reuse a
// now-distrusted key, so the error still propagates to the caller.
func (c *Client) handleAttestationFailure(err error) {
	if !errors.Is(err, core.ErrInvalidAttestation) {
		return
	}
	if c.attestor == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.attestor.Clear()
	if c.counter != nil {
		_ = c.counter.ClearCounter()
	}
}

// encodeBody marshals a request body, passing nil through untouched.
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &core.APIError{Message: err.Error(), Err: core.ErrEncode}
	}
	return payload, nil
}

// classifyTransportError maps a failed round trip into the taxonomy:
// deadline expiry is a timeout, caller cancellation passes through, and
// everything else is a network failure.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.APIError{Message: err.Error(), Err: core.ErrTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &core.APIError{Message: err.Error(), Err: core.ErrTimeout}
	}

	return &core.APIError{Message: err.Error(), Err: core.ErrNetwork}
}
