package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/petal-labs/warden/core"
)

const (
	ssePrefix   = "data: "
	sseSentinel = "data: [DONE]"
)

// EventStream is a cancellable sequence of decoded stream payloads.
//
// Events carries one JSON payload per well-formed data line and is closed
// when the stream terminates. Err emits at most one error and never reports
// caller-initiated cancellation.
type EventStream struct {
	Events <-chan json.RawMessage
	Err    <-chan error
}

// DoStream sends a request and decodes the response as a server-sent-event
// stream. Non-2xx responses are drained and classified as ordinary errors.
// A DeviceNotRegistered failure triggers the registration flow and exactly
// one retry, the same as Do.
func (c *Client) DoStream(ctx context.Context, method, path string, body any) (*EventStream, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamOnce(ctx, method, path, payload)
	if errors.Is(err, core.ErrDeviceNotRegistered) && c.attestor != nil {
		if regErr := c.registerDevice(ctx); regErr != nil {
			return nil, regErr
		}
		resp, err = c.streamOnce(ctx, method, path, payload)
	}
	if err != nil {
		return nil, err
	}

	events := make(chan json.RawMessage, 100)
	errCh := make(chan error, 1)

	go decodeSSE(ctx, resp.Body, events, errCh)

	return &EventStream{Events: events, Err: errCh}, nil
}

// streamOnce performs a single streaming round trip, returning the open
// response on success and a classified error otherwise.
func (c *Client) streamOnce(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	resp, err := c.roundTrip(ctx, method, path, payload, true)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		clsErr := classify(resp.StatusCode, respBody, resp.Header)
		c.handleAttestationFailure(clsErr)
		return nil, clsErr
	}

	return resp, nil
}

// decodeSSE reads newline-delimited server-sent events, emitting each
// well-formed data payload until the [DONE] sentinel or EOF. Blank lines,
// comment lines (":" prefix), unknown fields, and undecodable payloads are
// discarded for protocol forward-compatibility. Cancellation is observed
// between chunks and closes the stream without an error.
func decodeSSE(ctx context.Context, body io.ReadCloser, events chan<- json.RawMessage, errCh chan<- error) {
	defer body.Close()
	defer close(events)
	defer close(errCh)

	reader := bufio.NewReader(body)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')

		if trimmed := strings.TrimSpace(line); trimmed != "" {
			done, emitErr := handleLine(ctx, trimmed, events)
			if done || emitErr != nil {
				return
			}
		}

		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				// EOF ends the stream; a cancelled read is not a failure.
				return
			}
			errCh <- &core.APIError{Message: err.Error(), Err: core.ErrStreamInterrupted}
			return
		}
	}
}

// handleLine processes one complete line. It reports done=true on the
// termination sentinel and a non-nil error when the consumer cancelled
// mid-emit.
func handleLine(ctx context.Context, line string, events chan<- json.RawMessage) (done bool, err error) {
	// Protocol comments.
	if strings.HasPrefix(line, ":") {
		return false, nil
	}

	if line == sseSentinel {
		return true, nil
	}

	if !strings.HasPrefix(line, ssePrefix) {
		return false, nil
	}

	payload := line[len(ssePrefix):]
	if !json.Valid([]byte(payload)) {
		// Malformed chunk records are skipped, not fatal.
		return false, nil
	}

	select {
	case events <- json.RawMessage(payload):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
