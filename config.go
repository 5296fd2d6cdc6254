// Package raven is a Discord bot gateway/REST client: it opens and
// supervises gateway shards, parses and dispatches events, and executes
// REST calls under Discord's bucket-based rate limits.
package raven

import (
	"time"

	"github.com/valyala/fasthttp"

	"github.com/corvidlabs/raven/ratelimit"
)

// Config holds the tunables for a Client's REST execution.
type Config struct {
	// HTTPClient executes every REST request. Shared across concurrent
	// requests as a single long-lived client.
	HTTPClient *fasthttp.Client

	// Timeout bounds a single HTTP round trip (not counting rate-limit
	// waits, which are their own suspension point).
	Timeout time.Duration

	// Retries holds a retry count for REST requests. The request path does
	// not read it: ratelimit.Limiter.Do retries a 429 until the request
	// succeeds or its context ends, and any other non-2xx status, 502
	// included, is returned as a RequestFailed error without a retry.
	Retries int

	// RateLimiter is shared across every request this Client issues.
	RateLimiter *ratelimit.Limiter

	// UserAgent is sent on every REST request.
	UserAgent string

	// BaseURL is the Discord API root, overridable for testing against a
	// local mock server.
	BaseURL string
}

// DefaultConfig returns a Config wired to a fresh fasthttp.Client and
// ratelimit.Limiter, Retries set to 3, and a 10s per-request timeout.
func DefaultConfig() Config {
	return Config{
		HTTPClient:  &fasthttp.Client{},
		Timeout:     10 * time.Second,
		Retries:     3,
		RateLimiter: ratelimit.NewLimiter(),
		UserAgent:   "DiscordBot (https://github.com/corvidlabs/raven, 0.1.0)",
		BaseURL:     "https://discordapp.com/api/v6",
	}
}
