package petal

import (
	"net/http"

	"github.com/petal-labs/warden/attest"
	"github.com/petal-labs/warden/core"
	"github.com/petal-labs/warden/transport"
)

// Config holds the configuration for the Petal provider.
type Config struct {
	// TeamID is the optional team identifier sent with every request.
	TeamID string

	// BaseURL is the base URL for the API. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client to use for requests.
	HTTPClient *http.Client

	// Environment tags requests. Defaults to production.
	Environment core.Environment

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Attestor is an explicit attestation provider. When set, Counter must
	// be set alongside it.
	Attestor attest.Provider

	// Counter is the replay counter paired with Attestor.
	Counter transport.Counter

	// StorePath is the secure store location for store-backed attestation.
	// Empty means the default path.
	StorePath string

	attestationRequested bool
	simulated            bool
}

// Option is a functional option for configuring the Petal provider.
type Option func(*Config)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithEnvironment sets the environment requests are tagged for.
func WithEnvironment(env core.Environment) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithTeamID sets the team identifier sent with every request.
func WithTeamID(teamID string) Option {
	return func(c *Config) {
		c.TeamID = teamID
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithAttestor supplies an explicit attestation provider and replay counter,
// bypassing the store-backed default.
func WithAttestor(p attest.Provider, counter transport.Counter) Option {
	return func(c *Config) {
		c.Attestor = p
		c.Counter = counter
		c.attestationRequested = true
	}
}

// WithStorePath enables device attestation backed by an encrypted store at
// the given path. An empty path uses the default location.
func WithStorePath(path string) Option {
	return func(c *Config) {
		c.StorePath = path
		c.attestationRequested = true
	}
}

// WithSimulatedAttestation enables the simulated attestation variant, for
// environments without access to a device key. The backend accepts these
// payloads only where simulator traffic is allowed.
func WithSimulatedAttestation() Option {
	return func(c *Config) {
		c.simulated = true
		c.attestationRequested = true
	}
}
