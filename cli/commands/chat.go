package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/warden/core"
	"github.com/petal-labs/warden/securestore"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAPI        = 2
	ExitNetwork    = 3
)

func (a *App) newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a chat completion request",
		Long: `Send a chat completion request to the Petal API.

Examples:
  warden chat --model petal-2 --prompt "Hello"
  warden chat --prompt "Hello" --stream
  warden chat --prompt "Hello" --json`,
		RunE: a.runChat,
	}

	cmd.Flags().StringVar(&a.chatPrompt, "prompt", "", "User message (required)")
	cmd.Flags().StringVar(&a.chatSystem, "system", "", "System message")
	cmd.Flags().Float32Var(&a.chatTemperature, "temperature", 0, "Temperature (0 = use default)")
	cmd.Flags().IntVar(&a.chatMaxTokens, "max-tokens", 0, "Max tokens (0 = use default)")
	cmd.Flags().BoolVar(&a.chatStream, "stream", false, "Enable streaming output")

	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func (a *App) runChat(cmd *cobra.Command, args []string) error {
	if a.model == "" {
		return exitWithCode(ExitValidation, fmt.Errorf("model required: use --model flag or set default_model in config"))
	}
	if a.cfg.BundleID == "" {
		return exitWithCode(ExitValidation, fmt.Errorf("bundle ID not configured: run 'warden init' first"))
	}

	store, err := a.openStore(a.storePath())
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open secure store: %w", err))
	}

	apiKey, err := store.Get(apiKeyEntry)
	if err != nil {
		var nf *securestore.ErrNotFound
		if errors.As(err, &nf) {
			return exitWithCode(ExitValidation, fmt.Errorf("no API key stored: run 'warden init' first"))
		}
		return exitWithCode(ExitValidation, fmt.Errorf("failed to read API key: %w", err))
	}

	provider, err := a.createProvider(apiKey, a.cfg)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}

	client := core.NewClient(provider)
	builder := client.Chat(core.ModelID(a.model))
	if a.chatSystem != "" {
		builder = builder.System(a.chatSystem)
	}
	builder = builder.User(a.chatPrompt)

	if a.chatTemperature > 0 {
		builder = builder.Temperature(a.chatTemperature)
	}
	if a.chatMaxTokens > 0 {
		builder = builder.MaxTokens(a.chatMaxTokens)
	}

	ctx := context.Background()

	if a.chatStream {
		return a.runStreamingChat(ctx, builder)
	}
	return a.runNonStreamingChat(ctx, builder)
}

func (a *App) runNonStreamingChat(ctx context.Context, builder *core.ChatBuilder) error {
	resp, err := builder.GetResponse(ctx)
	if err != nil {
		return a.handleChatError(err)
	}

	if a.jsonOutput {
		return a.outputJSON(resp)
	}

	fmt.Fprintf(a.stdout, "> %s\n", a.chatPrompt)
	fmt.Fprintln(a.stdout, resp.Output)
	return nil
}

func (a *App) runStreamingChat(ctx context.Context, builder *core.ChatBuilder) error {
	chatStream, err := builder.Stream(ctx)
	if err != nil {
		return a.handleChatError(err)
	}

	if a.jsonOutput {
		// Accumulate for JSON output
		resp, err := core.DrainStream(ctx, chatStream)
		if err != nil {
			return a.handleChatError(err)
		}
		return a.outputJSON(resp)
	}

	fmt.Fprintf(a.stdout, "> %s\n", a.chatPrompt)

	for chunk := range chatStream.Ch {
		fmt.Fprint(a.stdout, chunk.Delta)
	}

	// Err and Final close once the stream settles; they are forwarded from
	// another goroutine, so block for them rather than poll.
	streamErr := <-chatStream.Err
	finalResp := <-chatStream.Final

	fmt.Fprintln(a.stdout)

	if streamErr != nil {
		return a.handleChatError(streamErr)
	}

	if a.verbose && finalResp != nil {
		fmt.Fprintf(a.stderr, "Usage: %d prompt + %d completion = %d total tokens\n",
			finalResp.Usage.PromptTokens,
			finalResp.Usage.CompletionTokens,
			finalResp.Usage.TotalTokens)
	}

	return nil
}

func (a *App) handleChatError(err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		if a.jsonOutput {
			a.outputErrorJSON(apiErr)
		} else {
			fmt.Fprintf(a.stderr, "Error: %s\n", apiErr.Message)
			if apiErr.RequestID != "" {
				fmt.Fprintf(a.stderr, "  Request ID: %s\n", apiErr.RequestID)
			}
			if apiErr.RetryAfter > 0 {
				fmt.Fprintf(a.stderr, "  Retry after: %ds\n", apiErr.RetryAfter)
			}
		}

		switch {
		case errors.Is(err, core.ErrNetwork), errors.Is(err, core.ErrTimeout):
			return exitWithCode(ExitNetwork, err)
		default:
			return exitWithCode(ExitAPI, err)
		}
	}

	// Validation errors
	if errors.Is(err, core.ErrModelRequired) || errors.Is(err, core.ErrNoMessages) {
		if a.jsonOutput {
			a.outputSimpleErrorJSON("validation_error", err.Error())
		} else {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
		}
		return exitWithCode(ExitValidation, err)
	}

	// Generic error
	if a.jsonOutput {
		a.outputSimpleErrorJSON("error", err.Error())
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return exitWithCode(ExitAPI, err)
}

func (a *App) outputJSON(resp *core.ChatResponse) error {
	output := map[string]interface{}{
		"id":     resp.ID,
		"model":  resp.Model,
		"output": resp.Output,
		"usage": map[string]int{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func (a *App) outputErrorJSON(apiErr *core.APIError) {
	output := map[string]interface{}{
		"error": map[string]interface{}{
			"code":       apiErr.Code,
			"message":    apiErr.Message,
			"status":     apiErr.Status,
			"request_id": apiErr.RequestID,
		},
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

func (a *App) outputSimpleErrorJSON(errType, message string) {
	output := map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
