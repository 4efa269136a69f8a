package transport

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
)

// Registration endpoints.
const (
	challengePath = "/v1/attest/challenge"
	registerPath  = "/v1/attest/register"
)

// registrationState tracks progress through the device registration flow.
// The flow is a straight line with a bounded retry budget of one; it is
// modeled explicitly so a persistent misconfiguration fails in a named
// state instead of looping.
type registrationState int

const (
	stateUnregistered registrationState = iota
	stateAttesting
	stateRegistering
	stateRegistered
)

func (s registrationState) String() string {
	switch s {
	case stateUnregistered:
		return "unregistered"
	case stateAttesting:
		return "attesting"
	case stateRegistering:
		return "registering"
	case stateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

type challengeRequest struct {
	BundleID string `json:"bundle_id"`
}

type challengeResponse struct {
	// Challenge is a base64-encoded one-time value.
	Challenge string `json:"challenge"`
}

type registerRequest struct {
	KeyID       string         `json:"key_id"`
	Attestation string         `json:"attestation"`
	BundleID    string         `json:"bundle_id"`
	TeamID      string         `json:"team_id,omitempty"`
	Device      deviceMetadata `json:"device"`
}

type deviceMetadata struct {
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	SDKVersion string `json:"sdk_version"`
}

// registerDevice runs the registration flow: fetch a one-time challenge,
// ensure and attest the local key, then submit the registration. The
// registration requests themselves are signed but never carry assertion
// headers, so the flow cannot recurse.
func (c *Client) registerDevice(ctx context.Context) error {
	state := stateUnregistered

	payload, err := encodeBody(challengeRequest{BundleID: c.cfg.Identity.BundleID})
	if err != nil {
		return err
	}
	var ch challengeResponse
	if err := c.sendOnce(ctx, http.MethodPost, challengePath, payload, &ch, false); err != nil {
		return fmt.Errorf("device registration (%s): %w", state, err)
	}

	state = stateAttesting

	c.mu.Lock()
	keyID, err := c.attestor.EnsureKey()
	var attestation string
	if err == nil {
		attestation, err = c.attestor.AttestKey(ch.Challenge)
	}
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("device registration (%s): %w", state, err)
	}

	state = stateRegistering

	payload, err = encodeBody(registerRequest{
		KeyID:       keyID,
		Attestation: attestation,
		BundleID:    c.cfg.Identity.BundleID,
		TeamID:      c.cfg.Identity.TeamID,
		Device: deviceMetadata{
			Platform:   runtime.GOOS,
			Arch:       runtime.GOARCH,
			SDKVersion: Version,
		},
	})
	if err != nil {
		return err
	}
	if err := c.sendOnce(ctx, http.MethodPost, registerPath, payload, nil, false); err != nil {
		return fmt.Errorf("device registration (%s): %w", state, err)
	}

	return nil
}
