package core

import (
	"context"
	"strings"
)

// ChatStream represents a streaming response from the backend.
//
// Channel rules:
//   - Providers MUST close Ch, Err, and Final when finished
//   - On context cancellation, providers MUST terminate promptly and close channels
//   - Caller-initiated cancellation is not reported on Err
//   - Err channel emits at most one error
//   - Final channel emits exactly once on success (or zero times on failure)
type ChatStream struct {
	// Ch emits text deltas in order. Closed when the stream ends.
	Ch <-chan ChatChunk

	// Err emits at most one error. Closed when the stream ends.
	Err <-chan error

	// Final is sent exactly once after successful stream completion.
	Final <-chan *ChatResponse
}

// DrainStream accumulates all deltas and returns the final ChatResponse.
// Blocks until the stream completes or the context cancels.
func DrainStream(ctx context.Context, s *ChatStream) (*ChatResponse, error) {
	if s == nil {
		return nil, ErrMalformedRequest
	}

	var accumulated strings.Builder
	var streamErr error
	var finalResp *ChatResponse

	ch, errc, finalc := s.Ch, s.Err, s.Final
	for ch != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case chunk, ok := <-ch:
			if !ok {
				ch = nil
				continue
			}
			accumulated.WriteString(chunk.Delta)

		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if err != nil {
				streamErr = err
			}
			// Keep draining Ch even after an error.

		case resp, ok := <-finalc:
			if !ok {
				finalc = nil
				continue
			}
			finalResp = resp
		}
	}

	// Err closes on every completion path, but an error forwarded from
	// another goroutine can land after Ch closes; block for it rather
	// than poll.
	for errc != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if err != nil {
				streamErr = err
			}
		}
	}

	if streamErr != nil {
		return nil, streamErr
	}

	for finalResp == nil && finalc != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp, ok := <-finalc:
			if !ok {
				finalc = nil
				continue
			}
			finalResp = resp
		}
	}

	if finalResp == nil {
		finalResp = &ChatResponse{}
	}
	if finalResp.Output == "" {
		finalResp.Output = accumulated.String()
	}

	return finalResp, nil
}
