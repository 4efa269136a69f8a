// Package petal provides the Petal chat API provider implementation for
// Warden. Requests go through the secured transport: every call is signed,
// optionally carries a device assertion, and device registration happens
// transparently on first contact with an attestation-enforcing backend.
package petal

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/petal-labs/warden/attest"
	"github.com/petal-labs/warden/core"
	"github.com/petal-labs/warden/securestore"
	"github.com/petal-labs/warden/transport"
)

// DefaultBaseURL is the default base URL for the Petal API.
const DefaultBaseURL = "https://api.petal.ai"

// Environment variable names read by NewFromEnv.
const (
	DefaultAPIKeyEnvVar   = "PETAL_API_KEY"
	DefaultBundleIDEnvVar = "PETAL_BUNDLE_ID"
)

var (
	// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
	ErrAPIKeyNotFound = errors.New("petal: PETAL_API_KEY environment variable not set")

	// ErrBundleIDNotFound is returned when the bundle ID environment variable is not set.
	ErrBundleIDNotFound = errors.New("petal: PETAL_BUNDLE_ID environment variable not set")
)

// NewFromEnv creates a Petal provider from PETAL_API_KEY and PETAL_BUNDLE_ID.
// This is a convenience factory for quick setup:
//
//	provider, err := petal.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := core.NewClient(provider)
func NewFromEnv(opts ...Option) (*Petal, error) {
	apiKey := os.Getenv(DefaultAPIKeyEnvVar)
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}
	bundleID := os.Getenv(DefaultBundleIDEnvVar)
	if bundleID == "" {
		return nil, ErrBundleIDNotFound
	}
	return New(apiKey, bundleID, opts...)
}

// Petal is the core.Provider implementation for the Petal chat API.
// Petal is safe for concurrent use.
type Petal struct {
	config Config
	http   *transport.Client
}

// New creates a Petal provider for the given API key and bundle ID.
func New(apiKey, bundleID string, opts ...Option) (*Petal, error) {
	cfg := Config{
		BaseURL:     DefaultBaseURL,
		HTTPClient:  http.DefaultClient,
		Environment: core.EnvironmentProduction,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	attestor, counter, err := resolveAttestation(&cfg)
	if err != nil {
		return nil, err
	}

	return &Petal{
		config: cfg,
		http: transport.New(transport.Config{
			APIKey:      apiKey,
			Identity:    core.AppIdentity{BundleID: bundleID, TeamID: cfg.TeamID},
			BaseURL:     cfg.BaseURL,
			HTTPClient:  cfg.HTTPClient,
			Environment: cfg.Environment,
			UserAgent:   cfg.UserAgent,
			Attestor:    attestor,
			Counter:     counter,
		}),
	}, nil
}

// resolveAttestation picks the attestation provider and counter from the
// configuration. An explicit attestor wins; otherwise a store-backed
// provider is built when attestation was requested.
func resolveAttestation(cfg *Config) (attest.Provider, transport.Counter, error) {
	if cfg.Attestor != nil {
		return cfg.Attestor, cfg.Counter, nil
	}
	if !cfg.attestationRequested {
		return nil, nil, nil
	}

	path := cfg.StorePath
	if path == "" {
		path = securestore.DefaultPath()
	}
	store, err := securestore.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if cfg.simulated {
		return attest.NewSimulatedProvider(store), store, nil
	}
	return attest.NewPlatformProvider(store), store, nil
}

// ID returns the provider identifier.
func (p *Petal) ID() string {
	return "petal"
}

// Chat sends a non-streaming chat request.
func (p *Petal) Chat(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	return p.doChat(ctx, req)
}

// StreamChat sends a streaming chat request.
func (p *Petal) StreamChat(ctx context.Context, req *core.ChatRequest) (*core.ChatStream, error) {
	return p.doStreamChat(ctx, req)
}

// Compile-time check that Petal implements Provider.
var _ core.Provider = (*Petal)(nil)
