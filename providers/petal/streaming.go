package petal

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/petal-labs/warden/core"
	"github.com/petal-labs/warden/transport"
)

// doStreamChat performs a streaming chat completion request. The transport
// owns the SSE protocol; this layer decodes each payload into chunks and
// assembles the final response.
func (p *Petal) doStreamChat(ctx context.Context, req *core.ChatRequest) (*core.ChatStream, error) {
	pReq := buildRequest(req, true)

	es, err := p.http.DoStream(ctx, http.MethodPost, chatCompletionsPath, pReq)
	if err != nil {
		return nil, err
	}

	chunkCh := make(chan core.ChatChunk, 100)
	errCh := make(chan error, 1)
	finalCh := make(chan *core.ChatResponse, 1)

	go processEvents(ctx, es, chunkCh, errCh, finalCh)

	return &core.ChatStream{
		Ch:    chunkCh,
		Err:   errCh,
		Final: finalCh,
	}, nil
}

// processEvents consumes decoded stream payloads, emitting content deltas
// and assembling the final response. Payloads that fail to decode as chunks
// are skipped; one bad record must not kill an otherwise healthy stream.
func processEvents(
	ctx context.Context,
	es *transport.EventStream,
	chunkCh chan<- core.ChatChunk,
	errCh chan<- error,
	finalCh chan<- *core.ChatResponse,
) {
	defer close(chunkCh)
	defer close(errCh)
	defer close(finalCh)

	var responseID string
	var responseModel string
	var finishReason string
	var usage *chatUsage

	for raw := range es.Events {
		var chunk streamChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			continue
		}

		if chunk.ID != "" {
			responseID = chunk.ID
		}
		if chunk.Model != "" {
			responseModel = chunk.Model
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}

		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = *choice.FinishReason
			}
			if choice.Delta.Content == "" {
				continue
			}
			out := core.ChatChunk{Delta: choice.Delta.Content}
			if finishReason != "" {
				out.FinishReason = finishReason
			}
			select {
			case chunkCh <- out:
			case <-ctx.Done():
				return
			}
		}
	}

	if err := <-es.Err; err != nil {
		errCh <- err
		return
	}
	if ctx.Err() != nil {
		// Caller-initiated cancellation is not reported on Err.
		return
	}

	finalResp := &core.ChatResponse{
		ID:           responseID,
		Model:        core.ModelID(responseModel),
		FinishReason: finishReason,
	}
	if usage != nil {
		finalResp.Usage = core.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	}

	finalCh <- finalResp
}
