// Package core provides the Warden SDK client and types.
package core

// ModelID is a string identifier for a model.
// Using string avoids coupling to server-side enums.
type ModelID string

// Role represents a message participant role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Environment selects which backend environment requests are tagged for.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentTest       Environment = "test"
)

// AppIdentity is the calling application's stable identity. The bundle ID is
// compared case-insensitively by the server and is bound into every request
// signature. The team ID is optional.
type AppIdentity struct {
	BundleID string
	TeamID   string
}

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	Model       ModelID   `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// ChatResponse is the final result of a chat completion.
type ChatResponse struct {
	ID           string     `json:"id"`
	Model        ModelID    `json:"model"`
	Output       string     `json:"output"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        TokenUsage `json:"usage"`
}

// ChatChunk is one incremental piece of a streaming response.
type ChatChunk struct {
	// Delta is the text fragment carried by this chunk.
	Delta string `json:"delta"`
	// FinishReason is set on the last content-bearing chunk, empty otherwise.
	FinishReason string `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
