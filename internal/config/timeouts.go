// Package config provides centralized timeout constants for the application.
//
// These values are tuned around two external constraints:
//   - Slack retries an event delivery if it does not receive a 200 OK within
//     3 seconds, so the webhook endpoint acknowledges immediately and does all
//     handler work asynchronously.
//   - Slack signs requests with a timestamp; requests older than the replay
//     window are rejected outright.
package config

import "time"

// Verification constants
const (
	// ReplayWindow is the maximum allowed clock skew between the request
	// timestamp header and server time, in either direction. Requests outside
	// this window are rejected as stale (replay protection).
	ReplayWindow = 300 * time.Second
)

// Handler timeouts
const (
	// HandlerInvocation is the default deadline for a single handler
	// invocation (script execution or prompt-agent completion). The
	// dispatcher stops waiting after this and reports the dispatch as
	// failed; the underlying process may still run to completion.
	HandlerInvocation = 30 * time.Second
)

// HTTP server timeouts
const (
	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// Slack event payloads are small JSON bodies.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout. The webhook
	// endpoints respond before handler work starts, so this stays short.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight dispatches to complete before forceful termination.
	GracefulShutdown = 30 * time.Second
)
