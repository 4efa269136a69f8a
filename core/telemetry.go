package core

import "time"

// TelemetryHook receives notifications about request lifecycle events.
// Implementations can use this for logging, metrics, or tracing.
//
// Event types never include sensitive data: no API keys, no message content,
// no response content, no signature material. Only operational metadata
// (model, timing, token counts, error kinds) is exposed, so telemetry output
// can be logged or shipped to monitoring systems without credential risk.
type TelemetryHook interface {
	// OnRequestStart is called when a request to the backend begins.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called when a request to the backend completes.
	OnRequestEnd(e RequestEndEvent)
}

// RequestStartEvent contains metadata about a starting request.
type RequestStartEvent struct {
	Model ModelID   // Model being called
	Start time.Time // When the request started
}

// RequestEndEvent contains metadata about a completed request.
type RequestEndEvent struct {
	Model ModelID    // Model that was called
	Start time.Time  // When the request started
	End   time.Time  // When the request completed
	Usage TokenUsage // Token consumption
	Err   error      // Error if request failed, nil on success
}

// Duration returns the elapsed time for the request.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
// Use this as a default when no telemetry is configured.
type NoopTelemetryHook struct{}

// OnRequestStart does nothing.
func (NoopTelemetryHook) OnRequestStart(RequestStartEvent) {}

// OnRequestEnd does nothing.
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent) {}

// Compile-time check that NoopTelemetryHook implements TelemetryHook.
var _ TelemetryHook = NoopTelemetryHook{}
