package petal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/petal-labs/warden/core"
)

func newTestProvider(t *testing.T, baseURL string, opts ...Option) *Petal {
	t.Helper()
	opts = append([]Option{WithBaseURL(baseURL)}, opts...)
	p, err := New("sk-test-key", "com.example.app", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestProviderID(t *testing.T) {
	p := newTestProvider(t, "http://localhost")
	if p.ID() != "petal" {
		t.Errorf("ID() = %q, want %q", p.ID(), "petal")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnvVar, "sk-env-key")
	t.Setenv(DefaultBundleIDEnvVar, "com.example.app")

	p, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	if p.ID() != "petal" {
		t.Errorf("ID() = %q", p.ID())
	}
}

func TestNewFromEnvMissingKey(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnvVar, "")
	t.Setenv(DefaultBundleIDEnvVar, "com.example.app")

	if _, err := NewFromEnv(); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("NewFromEnv() error = %v, want ErrAPIKeyNotFound", err)
	}
}

func TestNewFromEnvMissingBundleID(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnvVar, "sk-env-key")
	t.Setenv(DefaultBundleIDEnvVar, "")

	if _, err := NewFromEnv(); !errors.Is(err, ErrBundleIDNotFound) {
		t.Errorf("NewFromEnv() error = %v, want ErrBundleIDNotFound", err)
	}
}

func TestChat(t *testing.T) {
	var wireReq chatRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&wireReq)
		_ = json.NewEncoder(w).Encode(chatResponse{
			ID:    "resp-1",
			Model: "petal-2",
			Choices: []chatChoice{
				{Message: &chatRespMsg{Role: "assistant", Content: "hi"}, FinishReason: "stop"},
			},
			Usage: &chatUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, WithTeamID("TEAM42"), WithEnvironment(core.EnvironmentTest))

	resp, err := p.Chat(context.Background(), &core.ChatRequest{
		Model:    "petal-2",
		Messages: []core.Message{{Role: core.RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.Output != "hi" || resp.Usage.TotalTokens != 4 {
		t.Errorf("resp = %+v", resp)
	}
	if wireReq.Model != "petal-2" || wireReq.Stream {
		t.Errorf("wire request = %+v", wireReq)
	}

	// The secured transport signs every request.
	if headers.Get("X-Signature") == "" || headers.Get("X-Nonce") == "" {
		t.Error("request not signed")
	}
	if got := headers.Get("X-Bundle-Id"); got != "com.example.app" {
		t.Errorf("X-Bundle-Id = %q", got)
	}
	if got := headers.Get("X-Team-Id"); got != "TEAM42" {
		t.Errorf("X-Team-Id = %q", got)
	}
	if got := headers.Get("X-Environment"); got != "test" {
		t.Errorf("X-Environment = %q", got)
	}
}

func TestChatClassifiesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)

	_, err := p.Chat(context.Background(), &core.ChatRequest{
		Model:    "petal-2",
		Messages: []core.Message{{Role: core.RoleUser, Content: "hello"}},
	})
	if !errors.Is(err, core.ErrInvalidCredential) {
		t.Errorf("Chat() error = %v, want ErrInvalidCredential", err)
	}
}
