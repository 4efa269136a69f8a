package petal

import "github.com/petal-labs/warden/core"

// mapMessages converts Warden messages to the Petal wire format.
func mapMessages(msgs []core.Message) []chatMessage {
	result := make([]chatMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return result
}

// buildRequest creates a Petal API request from a core.ChatRequest.
func buildRequest(req *core.ChatRequest, stream bool) *chatRequest {
	pReq := &chatRequest{
		Model:    string(req.Model),
		Messages: mapMessages(req.Messages),
		Stream:   stream,
	}

	if req.Temperature != nil {
		pReq.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		pReq.MaxTokens = req.MaxTokens
	}

	return pReq
}

// mapResponse converts a Petal response to a core.ChatResponse.
func mapResponse(resp *chatResponse) *core.ChatResponse {
	result := &core.ChatResponse{
		ID:    resp.ID,
		Model: core.ModelID(resp.Model),
	}

	if resp.Usage != nil {
		result.Usage = core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.FinishReason = choice.FinishReason
		if choice.Message != nil {
			result.Output = choice.Message.Content
		}
	}

	return result
}
