package petal

import (
	"context"
	"net/http"

	"github.com/petal-labs/warden/core"
)

// doChat performs a non-streaming chat completion request. Signing,
// assertion, classification, and device registration all happen inside the
// transport.
func (p *Petal) doChat(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	pReq := buildRequest(req, false)

	var pResp chatResponse
	if err := p.http.Do(ctx, http.MethodPost, chatCompletionsPath, pReq, &pResp); err != nil {
		return nil, err
	}

	return mapResponse(&pResp), nil
}
