package petal

// chatCompletionsPath is the API endpoint for chat completions.
const chatCompletionsPath = "/v1/chat/completions"

// chatRequest represents a request to the Petal chat completions API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// chatMessage represents a message in the Petal wire format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents a non-streaming chat completions response.
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Created int64        `json:"created"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

// chatChoice represents a single choice in a response.
type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatRespMsg `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// chatRespMsg represents the assistant message in a response.
type chatRespMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatUsage represents token usage in a response.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamChunk represents a single chunk in a streaming response.
type streamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
}

// streamChoice represents a single choice in a streaming chunk.
type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

// streamDelta represents the delta content in a streaming chunk.
type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}
