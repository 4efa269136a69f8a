// Package core provides the Warden SDK client and types for the Petal
// chat-completion API.
//
// Warden is the client-side security and transport layer for Petal: every
// outbound request carries a per-request HMAC signature bound to the calling
// application's identity, and attested installs additionally carry a
// single-use device assertion. The core package defines the chat data model,
// the [Client] surface, and the error taxonomy the lower layers classify into.
//
// # Client
//
// The primary entry point is [Client], which wraps a [Provider] and adds
// telemetry, retry logic, and a fluent builder API:
//
//	provider, err := petal.New(apiKey, "com.example.app")
//	client := core.NewClient(provider)
//
//	resp, err := client.Chat("petal-2").
//	    System("You are a helpful assistant.").
//	    User("Hello!").
//	    GetResponse(ctx)
//
// # Streaming
//
// Use [ChatBuilder.Stream] for incremental responses:
//
//	stream, err := client.Chat(model).User("Tell me a story.").Stream(ctx)
//	if err != nil {
//	    return err
//	}
//	for chunk := range stream.Ch {
//	    fmt.Print(chunk.Delta)
//	}
//
// Cancelling the context stops chunk delivery promptly and releases the
// underlying connection; caller-initiated cancellation is never reported as
// a stream error.
//
// # Errors
//
// All failures surface as sentinel errors, usually wrapped in an [APIError]
// carrying the HTTP status, server error code, and request ID:
//
//	var apiErr *core.APIError
//	if errors.As(err, &apiErr) && errors.Is(err, core.ErrRateLimited) {
//	    wait := apiErr.RetryAfter
//	    ...
//	}
package core
